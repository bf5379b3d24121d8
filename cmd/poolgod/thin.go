package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var thinCmd = &cobra.Command{
	Use:   "thin",
	Short: "Thin-provisioning metadata maintenance",
}

var thinCheckCmd = &cobra.Command{
	Use:   "check <metadev>",
	Short: "Validate a thin-pool metadata device",
	Args:  cobra.ExactArgs(1),
	Run:   runThinCheck,
}

var thinRepairCmd = &cobra.Command{
	Use:   "repair <src-metadev> <dst-metadev>",
	Short: "Reconstruct thin-pool metadata onto a new device",
	Args:  cobra.ExactArgs(2),
	Run:   runThinRepair,
}

func init() {
	thinCmd.AddCommand(thinCheckCmd)
	thinCmd.AddCommand(thinRepairCmd)
}

func runThinCheck(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	tools := mustTools(cfg)

	if err := tools.CheckThinMetadata(args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("thin metadata on %s is valid\n", args[0])
}

func runThinRepair(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	tools := mustTools(cfg)

	if err := tools.RepairThinMetadata(args[0], args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("repaired thin metadata from %s into %s\n", args[0], args[1])
}
