package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chemtalk/chemtalk/internal/config"
)

// Version information (injected at build time via ldflags)
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and configuration information",
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	fmt.Printf("chemtalk %s\n", AppVersion)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("  Server: %s\n", cfg.ServerURL)
	fmt.Printf("  Websocket: %s\n", cfg.WebsocketURL())
	fmt.Printf("  Ingest mode: %s\n", cfg.IngestMode)
	fmt.Printf("  Reconnect delay: %s\n", cfg.ReconnectDelay)
	fmt.Printf("  Download dir: %s\n", cfg.DownloadDir)
	return nil
}
