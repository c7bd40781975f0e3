package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"

	"github.com/chemtalk/chemtalk/internal/artifact"
	"github.com/chemtalk/chemtalk/internal/client"
	"github.com/chemtalk/chemtalk/internal/config"
	"github.com/chemtalk/chemtalk/internal/log"
	"github.com/chemtalk/chemtalk/internal/transcript"
	"github.com/chemtalk/chemtalk/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive console",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// The TUI owns the terminal, so logs go to a file instead of stderr.
	logger, closeLog := newFileLogger(cfg)
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	downloader, err := artifact.NewClient(artifact.Config{
		BaseURL:           cfg.ServerURL,
		Dir:               cfg.DownloadDir,
		AllowedExtensions: cfg.AllowedExtensions,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("creating download client: %w", err)
	}

	model, err := tui.New(ctx, tui.Config{
		Session: client.SessionConfig{
			URL:            cfg.WebsocketURL(),
			Mode:           ingestMode(cfg),
			ReconnectDelay: cfg.ReconnectDelay,
			SendRate:       cfg.SendRate,
			Logger:         logger,
		},
		Downloader: downloader,
	})
	if err != nil {
		return fmt.Errorf("creating TUI: %w", err)
	}
	defer model.Session().Close()

	program := tea.NewProgram(model, tea.WithContext(ctx))
	if _, err = program.Run(); err != nil {
		return fmt.Errorf("TUI exited: %w", err)
	}
	return nil
}

func ingestMode(cfg *config.Config) transcript.Mode {
	if cfg.IngestMode == config.IngestIncremental {
		return transcript.ModeIncremental
	}
	return transcript.ModeDiscrete
}

// newFileLogger logs to ~/.chemtalk/chemtalk.log. If the file cannot be
// opened the logger is a no-op; the console must still come up.
func newFileLogger(cfg *config.Config) (log.Logger, func()) {
	home, err := os.UserHomeDir()
	if err != nil {
		return log.NewNop(), func() {}
	}

	path := filepath.Join(home, ".chemtalk", "chemtalk.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return log.NewNop(), func() {}
	}

	logger := log.NewWithWriter(io.Writer(f), log.Config{
		Level: config.LevelFromString(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
	return logger, func() { _ = f.Close() }
}
