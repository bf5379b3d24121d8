package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/sigreer/poolgod/internal/blockdev"
	"github.com/sigreer/poolgod/internal/config"
	"github.com/sigreer/poolgod/internal/extcmd"
	"github.com/sigreer/poolgod/internal/identify"
	"github.com/sigreer/poolgod/internal/udev"
	"github.com/sigreer/poolgod/internal/version"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "poolgod",
	Short: "Storage pool backstore management tool",
	Long: `poolgod manages the backstore of a storage pool: it classifies block
device ownership by combining the udev database with on-disk signatures,
and drives the external maintenance tools (mkfs.xfs, thin_check,
thin_repair, xfs_admin, xfs_growfs) for devices admitted into a pool.`,
}

var identifyCmd = &cobra.Command{
	Use:   "identify <devnode>",
	Short: "Classify ownership of a block device",
	Long: `Classify whether a block device is owned by this manager, owned by
another subsystem, free to claim, or in a contradictory state (the udev
database claims it for this manager but the on-disk signature disagrees).

Examples:
  poolgod identify /dev/sdb
  poolgod identify /dev/loop0`,
	Args: cobra.ExactArgs(1),
	Run:  runIdentify,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <path>...",
	Short: "Resolve paths to unique block devices",
	Long: `Resolve a list of paths to their backing block devices, deduplicating
aliases. When several paths refer to the same device the last one given is
retained. Fails on the first path that is not a block device.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runResolve,
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify required external binaries are installed",
	Run:   runVerify,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/poolgod/config.yaml)")

	rootCmd.AddCommand(identifyCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(inventoryCmd)
	rootCmd.AddCommand(fsCmd)
	rootCmd.AddCommand(thinCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func udevDB(cfg *config.Config) *udev.DB {
	if cfg.UdevDataDir != "" {
		return udev.NewAt(cfg.UdevDataDir)
	}
	return udev.New()
}

// mustTools verifies the external binaries and aborts the process on
// failure: no device may be touched after a failed verification.
func mustTools(cfg *config.Config) *extcmd.Tools {
	tools, err := extcmd.VerifyBinaries(cfg.BinaryDirs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error verifying binaries: %v\n", err)
		os.Exit(1)
	}
	return tools
}

func runIdentify(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ownership, err := identify.NewClassifier(udevDB(cfg)).Identify(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s: %s\n", args[0], ownership)
}

func runResolve(cmd *cobra.Command, args []string) {
	resolved, err := blockdev.ResolveDevices(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	devices := make([]blockdev.Device, 0, len(resolved))
	for dev := range resolved {
		devices = append(devices, dev)
	}
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Major != devices[j].Major {
			return devices[i].Major < devices[j].Major
		}
		return devices[i].Minor < devices[j].Minor
	})

	for _, dev := range devices {
		fmt.Printf("%-8s %s\n", dev, resolved[dev])
	}
}

func runVerify(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	tools := mustTools(cfg)

	paths := tools.Paths()
	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%-12s %s\n", name, paths[name])
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
