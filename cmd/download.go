package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chemtalk/chemtalk/internal/artifact"
	"github.com/chemtalk/chemtalk/internal/config"
	"github.com/chemtalk/chemtalk/internal/log"
	"github.com/chemtalk/chemtalk/internal/transcript"
)

var downloadCmd = &cobra.Command{
	Use:   "download <file_path>...",
	Short: "Fetch artifacts from the backend without opening the console",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := log.New(log.Config{
		Level: config.LevelFromString(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dl, err := artifact.NewClient(artifact.Config{
		BaseURL:           cfg.ServerURL,
		Dir:               cfg.DownloadDir,
		AllowedExtensions: cfg.AllowedExtensions,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("creating download client: %w", err)
	}

	for _, remote := range args {
		local, err := dl.Fetch(ctx, transcript.FileRef{Path: remote})
		if err != nil {
			return fmt.Errorf("fetching %s: %w", remote, err)
		}
		fmt.Printf("saved %s\n", local)
	}
	return nil
}
