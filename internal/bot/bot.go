// Package bot wires the poll service, the Discord client and the scheduler
// into a single process and makes sure only one instance polls at a time.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/hard-gainer/status-bot/internal/config"
	"github.com/hard-gainer/status-bot/internal/discord"
	"github.com/hard-gainer/status-bot/internal/killswitch"
	"github.com/hard-gainer/status-bot/internal/model"
	"github.com/hard-gainer/status-bot/internal/scheduler"
	"github.com/hard-gainer/status-bot/internal/service"
)

const shutdownTimeout = 5 * time.Second

// ErrAlreadyRunning is returned when another instance holds the lock
var ErrAlreadyRunning = errors.New("another status bot instance is already running")

// Bot owns the running components
type Bot struct {
	cfg       *config.Config
	lockPath  string
	lock      *flock.Flock
	service   *service.Service
	client    *discord.Client
	scheduler *scheduler.Scheduler
}

// New builds the bot from config without connecting anywhere
func New(cfg *config.Config) (*Bot, error) {
	if cfg == nil {
		return nil, errors.New("bot requires config")
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	svc := service.NewService(
		killswitch.New(cfg.KillFile),
		nil,
		SettingsFromConfig(cfg.PollConfig),
		service.WithClock(func() time.Time { return time.Now().In(loc) }),
	)

	client, err := discord.NewClient(cfg.DiscordConfig, svc)
	if err != nil {
		return nil, err
	}
	svc.SetNotifier(client)

	return &Bot{
		cfg:       cfg,
		lockPath:  cfg.LockFile,
		lock:      flock.New(cfg.LockFile),
		service:   svc,
		client:    client,
		scheduler: scheduler.New(svc, loc),
	}, nil
}

// SettingsFromConfig converts the poll config into runtime settings
func SettingsFromConfig(cfg config.PollConfig) model.Settings {
	mode := model.PromptChannel
	if cfg.PollMode == config.ModeDM {
		mode = model.PromptDM
	}

	return model.Settings{
		PollHour:        cfg.PollHour,
		PollMinute:      cfg.PollMinute,
		Timeout:         cfg.Timeout(),
		Members:         cfg.MemberIDs,
		StatusChannelID: cfg.StatusChannelID,
		PollChannelID:   cfg.PollChannelID,
		Mode:            mode,
		Prompt:          cfg.PollPrompt,
	}
}

// Run holds the instance lock and serves until ctx is done
func (b *Bot) Run(ctx context.Context) error {
	if err := acquire(b.lock); err != nil {
		return err
	}
	defer func() {
		if err := b.lock.Unlock(); err != nil {
			slog.Warn("Failed to release instance lock", "error", err)
		}
	}()
	slog.Info("Instance lock acquired", "lock", b.lockPath)

	slog.Info("Connecting to Discord...")
	if err := b.client.Open(ctx); err != nil {
		return err
	}
	defer b.client.Close()

	if err := b.scheduler.Start(ctx); err != nil {
		return err
	}

	slog.Info("Bot is now running",
		"poll_time", service.Clock{Hour: b.cfg.PollHour, Minute: b.cfg.PollMinute}.String(),
		"members", len(b.cfg.MemberIDs),
		"kill_file", b.cfg.KillFile)

	<-ctx.Done()
	slog.Info("Shutting down bot...")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	b.scheduler.Stop(stopCtx)

	return nil
}

// acquire takes the lock without blocking
func acquire(lock *flock.Flock) error {
	if dir := filepath.Dir(lock.Path()); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create lock directory: %w", err)
		}
	}

	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	return nil
}
