package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose   bool
	workspace string

	// Credential flags shared by login, signup and upload
	credUsername string
	credPassword string
	credRemember bool

	// Upload flags
	setName     string
	makePublic  bool
	description string

	// Import flags
	selectIndex int
	sortBy      string
	sortDesc    bool

	logger *zap.Logger
)

// rootCmd opens the interactive cloud dialog.
var rootCmd = &cobra.Command{
	Use:   "pktcloud",
	Short: "Share packet sets through the Packet Sender cloud",
	Long: `pktcloud logs in to the packet sharing service, saves the locally
stored packets as a named set, and imports sets shared by others.

Run without arguments to open the interactive cloud dialog.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The dialog owns the terminal; zap output would tear it.
		if cmd == cmd.Root() {
			logger = zap.NewNop()
			return nil
		}

		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runInteractive,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the cloud with the given or remembered credentials",
	RunE:  runLogin,
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create a cloud account, then log in with it",
	RunE:  runSignup,
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Save every local packet to the cloud as a named set",
	Long: `Uploads all locally stored packets as one packet set.

Example:
  pktcloud upload --name "lab bench" --public --description "UDP probes for the lab"`,
	RunE: runUpload,
}

var importCmd = &cobra.Command{
	Use:   "import [share-link-or-key]",
	Short: "Fetch packet sets shared under a link and optionally import one",
	Long: `Fetches the packet sets behind a share link (or a bare key) and lists
them. With --select the chosen set is merged into the local packet store.

Examples:
  pktcloud import https://cloud.packetsender.com/?key=abc123
  pktcloud import abc123 --sort count --desc --select 1`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var packetsCmd = &cobra.Command{
	Use:   "packets",
	Short: "List the locally stored packets",
	RunE:  listPackets,
}

func addCredentialFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&credUsername, "username", "u", "", "Cloud username (default: remembered)")
	cmd.Flags().StringVarP(&credPassword, "password", "p", "", "Cloud password (or set PKTCLOUD_PASSWORD env)")
	cmd.Flags().BoolVar(&credRemember, "remember", false, "Remember the login in the settings file")
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")

	addCredentialFlags(loginCmd)
	addCredentialFlags(signupCmd)
	addCredentialFlags(uploadCmd)

	uploadCmd.Flags().StringVar(&setName, "name", "", "Packet set name (required)")
	uploadCmd.Flags().BoolVar(&makePublic, "public", false, "Make the set public")
	uploadCmd.Flags().StringVar(&description, "description", "", "Public description (required with --public)")
	uploadCmd.MarkFlagRequired("name")

	importCmd.Flags().IntVar(&selectIndex, "select", 0, "Import the Nth listed set (1-based)")
	importCmd.Flags().StringVar(&sortBy, "sort", "description", "Sort the list by description or count")
	importCmd.Flags().BoolVar(&sortDesc, "desc", false, "Sort descending")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(packetsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
