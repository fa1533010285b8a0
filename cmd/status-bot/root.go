package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/hard-gainer/status-bot/internal/bot"
	"github.com/hard-gainer/status-bot/internal/config"
	"github.com/hard-gainer/status-bot/internal/logger"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "status-bot",
		Short:         "Nightly Discord availability poll",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context())
		},
	}

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newOffCommand())
	rootCmd.AddCommand(newOnCommand())
	rootCmd.AddCommand(newStatusCommand())

	return rootCmd
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context())
		},
	}
}

func runBot(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg := config.NewConfig()
	logger.InitLogger(cfg.LogConfig)
	slog.Info("Starting Discord status bot...")

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		return err
	}

	slog.Info("Config loaded",
		"members", len(cfg.MemberIDs),
		"status_channel_id", cfg.StatusChannelID,
		"poll_mode", cfg.PollMode,
		"timeout_min", cfg.TimeoutMinutes,
		"kill_file", cfg.KillFile,
	)

	b, err := bot.New(cfg)
	if err != nil {
		slog.Error("Failed to create bot", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := b.Run(ctx); err != nil {
		slog.Error("Bot stopped with error", "error", err)
		return err
	}
	return nil
}
