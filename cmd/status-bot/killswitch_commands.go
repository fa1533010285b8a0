package main

import (
	"fmt"
	"strings"

	"github.com/hard-gainer/status-bot/internal/config"
	"github.com/hard-gainer/status-bot/internal/killswitch"
	"github.com/hard-gainer/status-bot/internal/service"
	"github.com/spf13/cobra"
)

func newOffCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "off",
		Short: "Pause nightly polls by creating the killswitch file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ks := killswitch.New(config.NewConfig().KillFile)
			if err := ks.Disable(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "auto-poll muted (%s)\n", ks.Path())
			return nil
		},
	}
}

func newOnCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "on",
		Short: "Resume nightly polls by removing the killswitch file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ks := killswitch.New(config.NewConfig().KillFile)
			if err := ks.Enable(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "auto-poll live again")
			return nil
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the killswitch state and poll schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.NewConfig()

			disabled, err := killswitch.New(cfg.KillFile).Disabled()
			if err != nil {
				return err
			}

			state := "enabled"
			if disabled {
				state = "disabled"
			}
			members := "none"
			if len(cfg.MemberIDs) > 0 {
				members = strings.Join(cfg.MemberIDs, ", ")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "auto-poll:  %s (%s)\n", state, cfg.KillFile)
			fmt.Fprintf(out, "poll time:  %s %s\n", service.Clock{Hour: cfg.PollHour, Minute: cfg.PollMinute}, cfg.PollTimezone)
			fmt.Fprintf(out, "timeout:    %d minutes\n", cfg.TimeoutMinutes)
			fmt.Fprintf(out, "members:    %s\n", members)
			return nil
		},
	}
}
