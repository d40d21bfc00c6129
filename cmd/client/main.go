package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/echo-chat/backend/internal/config"
	"github.com/echo-chat/backend/internal/journal"
	"github.com/echo-chat/backend/internal/logging"
	"github.com/echo-chat/backend/pkg/chatclient"
)

var rootCmd = &cobra.Command{
	Use:   "echo-client",
	Short: "Terminal client for the echo chat server",
	RunE:  runClient,
}

var (
	flagURL      string
	flagJournal  string
	flagLogLevel string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagURL, "url", "", "server WebSocket URL (default from ECHO_URL)")
	flags.StringVar(&flagJournal, "journal", "", "optional file to record every frame as JSON lines (default from ECHO_JOURNAL)")
	flags.StringVar(&flagLogLevel, "log-level", "", "log level (default from ECHO_LOG_LEVEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runClient(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	if flagURL != "" {
		cfg.URL = flagURL
	}
	if flagJournal != "" {
		cfg.JournalPath = flagJournal
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}

	logger := logging.New(cfg.LogLevel, true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var recorder chatclient.Recorder
	if cfg.JournalPath != "" {
		j, err := journal.Create(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer j.Close()
		if err := j.WriteHeader(cfg.URL); err != nil {
			return fmt.Errorf("write journal header: %w", err)
		}
		recorder = j
	}

	client := chatclient.New(cfg.URL, chatclient.Config{
		Recorder: recorder,
		Logger:   logger,
	})
	defer client.Close()

	out := cmd.OutOrStdout()
	con := &console{session: client, out: out}

	client.Start(ctx, chatclient.Handlers{
		OnStatus: con.printStatus,
		OnResult: con.printResult,
	})
	logger.Debug().Str("url", client.Address()).Msg("client started")

	return con.run(ctx, cmd.InOrStdin())
}
