package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var fsCmd = &cobra.Command{
	Use:   "fs",
	Short: "Filesystem maintenance via external tools",
}

var fsCreateCmd = &cobra.Command{
	Use:   "create <devnode>",
	Short: "Force-format a device as XFS",
	Long: `Force-format a device as XFS with a filesystem UUID embedded, in quiet
mode. The device is not checked for existing content or mounts; run
'poolgod identify' first.`,
	Args: cobra.ExactArgs(1),
	Run:  runFsCreate,
}

var fsGrowCmd = &cobra.Command{
	Use:   "grow <mountpoint>",
	Short: "Expand a mounted filesystem to fill its device",
	Args:  cobra.ExactArgs(1),
	Run:   runFsGrow,
}

var fsSetUUIDCmd = &cobra.Command{
	Use:   "set-uuid <devnode> <uuid>",
	Short: "Rewrite a filesystem's UUID without reformatting",
	Args:  cobra.ExactArgs(2),
	Run:   runFsSetUUID,
}

func init() {
	fsCreateCmd.Flags().String("uuid", "", "filesystem UUID (default: random)")

	fsCmd.AddCommand(fsCreateCmd)
	fsCmd.AddCommand(fsGrowCmd)
	fsCmd.AddCommand(fsSetUUIDCmd)
}

func runFsCreate(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	tools := mustTools(cfg)

	fsUUID := uuid.New()
	if flagUUID, _ := cmd.Flags().GetString("uuid"); flagUUID != "" {
		parsed, err := uuid.Parse(flagUUID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid uuid %q: %v\n", flagUUID, err)
			os.Exit(1)
		}
		fsUUID = parsed
	}

	if err := tools.CreateFilesystem(args[0], fsUUID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("created filesystem %s on %s\n", fsUUID, args[0])
}

func runFsGrow(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	tools := mustTools(cfg)

	if err := tools.GrowFilesystem(args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("expanded filesystem at %s\n", args[0])
}

func runFsSetUUID(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	tools := mustTools(cfg)

	fsUUID, err := uuid.Parse(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid uuid %q: %v\n", args[1], err)
		os.Exit(1)
	}

	if err := tools.SetFilesystemUUID(args[0], fsUUID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("set filesystem UUID %s on %s\n", fsUUID, args[0])
}
