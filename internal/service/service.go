package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hard-gainer/status-bot/internal/model"
	"github.com/hard-gainer/status-bot/internal/notification"
)

// service errors
var (
	ErrPollingDisabled   = errors.New("polling is disabled")
	ErrNoMembers         = errors.New("no members configured")
	ErrPollInProgress    = errors.New("a poll is already running")
	ErrInvalidTime       = errors.New("time must be HH:MM (24h)")
	ErrInvalidTimeout    = errors.New("timeout must be between 1-60 minutes")
	ErrInvalidChannel    = errors.New("channel id is required")
	ErrNoPromptDelivered = errors.New("no prompt could be delivered")
)

const (
	minTimeoutMinutes = 1
	maxTimeoutMinutes = 60
)

// Killswitch stores whether polling is paused
type Killswitch interface {
	Disabled() (bool, error)
	Disable() error
	Enable() error
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides how poll ids are made
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// Service represents service layer
type Service struct {
	killswitch Killswitch
	notifier   notification.Notifier

	mu        sync.Mutex
	settings  model.Settings
	override  *Clock
	lastFired string
	active    *activePoll

	now   func() time.Time
	newID func() string
}

type activePoll struct {
	poll     *model.Poll
	done     chan struct{}
	released chan struct{}
	once     sync.Once
}

func (a *activePoll) finish() {
	a.once.Do(func() { close(a.done) })
}

// NewService creates an instance of service
func NewService(killswitch Killswitch, notifier notification.Notifier, settings model.Settings, opts ...Option) *Service {
	s := &Service{
		killswitch: killswitch,
		notifier:   notifier,
		settings:   settings.Clone(),
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetNotifier sets the notifier once the chat client exists
func (s *Service) SetNotifier(notifier notification.Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = notifier
}

// NotifyChannel posts a message to the channel if the notifier is configured
func (s *Service) NotifyChannel(channelID, message string) error {
	notifier := s.currentNotifier()
	if notifier == nil {
		slog.Warn("Notifier not configured, message not sent", "channel_id", channelID)
		return nil
	}

	return notifier.PostMessage(channelID, message)
}

func (s *Service) currentNotifier() notification.Notifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notifier
}

// Tick runs the scheduled poll when now matches the due time. It returns a
// nil poll and nil error when nothing is due. If another poll is running the
// scheduled one starts once it closes.
func (s *Service) Tick(ctx context.Context, now time.Time) (*model.Poll, error) {
	s.mu.Lock()
	due := s.dueLocked()
	key := now.Format("2006-01-02 15:04")
	if now.Hour() != due.Hour || now.Minute() != due.Minute || s.lastFired == key {
		s.mu.Unlock()
		return nil, nil
	}
	s.lastFired = key

	disabled, err := s.killswitch.Disabled()
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to read killswitch: %w", err)
	}
	if disabled {
		s.mu.Unlock()
		slog.Info("Polling disabled by killswitch, skipping", "due", due.String())
		return nil, ErrPollingDisabled
	}
	if len(s.settings.Members) == 0 {
		s.mu.Unlock()
		slog.Warn("No members configured, skipping poll", "due", due.String())
		return nil, ErrNoMembers
	}
	if s.override != nil {
		slog.Info("Clearing one-off poll time", "time", s.override.String())
		s.override = nil
	}
	s.mu.Unlock()

	active, settings, err := s.beginAfterActive(ctx, model.TriggerScheduled)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, active, settings, "")
}

// beginAfterActive waits for a running poll to be released before starting
// a new one
func (s *Service) beginAfterActive(ctx context.Context, trigger model.Trigger) (*activePoll, model.Settings, error) {
	for {
		s.mu.Lock()
		current := s.active
		s.mu.Unlock()

		if current != nil {
			slog.Info("Poll in progress, scheduled poll queued", "running_poll_id", current.poll.ID)
			select {
			case <-current.released:
			case <-ctx.Done():
				return nil, model.Settings{}, ctx.Err()
			}
		}

		active, settings, err := s.begin(trigger)
		if errors.Is(err, ErrPollInProgress) {
			continue
		}
		return active, settings, err
	}
}

// RunCycle prompts the members, waits for reactions and posts the summary.
// fallbackChannelID receives the summary when no status channel is set.
func (s *Service) RunCycle(ctx context.Context, trigger model.Trigger, fallbackChannelID string) (*model.Poll, error) {
	active, settings, err := s.begin(trigger)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, active, settings, fallbackChannelID)
}

// StartTestPoll runs a poll in the background right away, ignoring the
// killswitch, and returns the number of members polled
func (s *Service) StartTestPoll(ctx context.Context, replyChannelID string) (int, error) {
	active, settings, err := s.begin(model.TriggerTest)
	if err != nil {
		return 0, err
	}

	go func() {
		if _, err := s.run(ctx, active, settings, replyChannelID); err != nil {
			slog.Error("Test poll failed", "poll_id", active.poll.ID, "error", err)
		}
	}()

	return len(settings.Members), nil
}

func (s *Service) begin(trigger model.Trigger) (*activePoll, model.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		return nil, model.Settings{}, ErrPollInProgress
	}
	if len(s.settings.Members) == 0 {
		return nil, model.Settings{}, ErrNoMembers
	}

	settings := s.settings.Clone()
	poll := model.NewPoll(s.newID(), trigger, settings.Members, s.now(), settings.Timeout)
	active := &activePoll{poll: poll, done: make(chan struct{}), released: make(chan struct{})}
	s.active = active

	return active, settings, nil
}

func (s *Service) run(ctx context.Context, active *activePoll, settings model.Settings, fallbackChannelID string) (*model.Poll, error) {
	poll := active.poll
	slog.Info("Starting poll cycle",
		"poll_id", poll.ID,
		"trigger", poll.Trigger,
		"members", len(poll.Members),
		"timeout", settings.Timeout)

	if err := s.sendPrompts(active, settings, fallbackChannelID); err != nil {
		s.release(active)
		slog.Error("Failed to send poll prompt", "poll_id", poll.ID, "error", err)
		return nil, err
	}

	timer := time.NewTimer(settings.Timeout)
	defer timer.Stop()

	var waitErr error
	select {
	case <-timer.C:
		slog.Info("Poll window closed", "poll_id", poll.ID)
	case <-active.done:
		slog.Info("All members responded", "poll_id", poll.ID)
	case <-ctx.Done():
		slog.Warn("Poll cancelled", "poll_id", poll.ID)
		waitErr = ctx.Err()
	}

	s.release(active)

	slog.Info("Poll closed",
		"poll_id", poll.ID,
		"responded", len(poll.Responded()),
		"no_response", len(poll.Missing()))

	if waitErr != nil {
		return poll, waitErr
	}

	channelID := settings.StatusChannelID
	if channelID == "" {
		channelID = fallbackChannelID
	}
	if channelID == "" {
		slog.Warn("No status channel configured, summary not posted", "poll_id", poll.ID)
		return poll, nil
	}

	if err := s.NotifyChannel(channelID, FormatSummary(poll)); err != nil {
		return poll, fmt.Errorf("failed to post summary: %w", err)
	}

	slog.Info("Summary posted", "poll_id", poll.ID, "channel_id", channelID)
	return poll, nil
}

// release closes the poll and clears it as the active one
func (s *Service) release(active *activePoll) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active.poll.Close()
	if s.active == active {
		s.active = nil
		close(active.released)
	}
}

func (s *Service) sendPrompts(active *activePoll, settings model.Settings, fallbackChannelID string) error {
	notifier := s.currentNotifier()
	if notifier == nil {
		return fmt.Errorf("%w: notifier not configured", ErrNoPromptDelivered)
	}

	text := settings.Prompt
	if active.poll.Trigger == model.TriggerTest {
		text = "🧪 **TEST POLL** - " + text
	}
	reactions := []string{model.EmojiYes, model.EmojiNo}

	if settings.Mode == model.PromptDM {
		delivered := 0
		for _, userID := range settings.Members {
			dmChannelID, messageID, err := notifier.SendDirectPrompt(userID, text)
			if err != nil {
				slog.Error("Failed to send direct prompt", "poll_id", active.poll.ID, "user_id", userID, "error", err)
				continue
			}
			s.addMessage(active, messageID)
			notifier.AddReactions(dmChannelID, messageID, reactions)
			delivered++
		}
		if delivered == 0 {
			return ErrNoPromptDelivered
		}
		slog.Info("Direct prompts sent", "poll_id", active.poll.ID, "delivered", delivered)
		return nil
	}

	channelID := firstNonEmpty(settings.PollChannelID, settings.StatusChannelID, fallbackChannelID)
	if channelID == "" {
		return fmt.Errorf("%w: no poll channel configured", ErrNoPromptDelivered)
	}

	messageID, err := notifier.SendChannelPrompt(channelID, mentions(settings.Members)+" "+text)
	if err != nil {
		return fmt.Errorf("failed to send prompt: %w", err)
	}
	s.addMessage(active, messageID)
	notifier.AddReactions(channelID, messageID, reactions)

	slog.Info("Channel prompt sent", "poll_id", active.poll.ID, "channel_id", channelID, "message_id", messageID)
	return nil
}

func (s *Service) addMessage(active *activePoll, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	active.poll.MessageIDs = append(active.poll.MessageIDs, messageID)
}

// HandleReaction records a reaction on the running poll's prompt
func (s *Service) HandleReaction(messageID, userID, emoji string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil || !s.active.poll.HasMessage(messageID) {
		return
	}

	poll := s.active.poll
	if _, voted := poll.Responses[userID]; voted {
		slog.Info("Member updating response", "poll_id", poll.ID, "user_id", userID, "emoji", emoji)
	}
	if !poll.Record(userID, emoji, s.now()) {
		return
	}

	slog.Info("Reaction recorded", "poll_id", poll.ID, "user_id", userID, "emoji", emoji)

	if poll.AllResponded() {
		s.active.finish()
	}
}

// DisablePolling engages the killswitch
func (s *Service) DisablePolling() error {
	if err := s.killswitch.Disable(); err != nil {
		slog.Error("Failed to disable polling", "error", err)
		return fmt.Errorf("failed to disable polling: %w", err)
	}
	return nil
}

// EnablePolling releases the killswitch
func (s *Service) EnablePolling() error {
	if err := s.killswitch.Enable(); err != nil {
		slog.Error("Failed to enable polling", "error", err)
		return fmt.Errorf("failed to enable polling: %w", err)
	}
	return nil
}

// PollingEnabled reports the killswitch state
func (s *Service) PollingEnabled() (bool, error) {
	disabled, err := s.killswitch.Disabled()
	if err != nil {
		return false, fmt.Errorf("failed to read killswitch: %w", err)
	}
	return !disabled, nil
}

// SetPollTime changes the daily poll time
func (s *Service) SetPollTime(c Clock) error {
	if !c.Valid() {
		return ErrInvalidTime
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.PollHour = c.Hour
	s.settings.PollMinute = c.Minute

	slog.Info("Daily poll time changed", "time", c.String())
	return nil
}

// SetNextPoll sets a one-off poll time, cleared once it fires
func (s *Service) SetNextPoll(c Clock) error {
	if !c.Valid() {
		return ErrInvalidTime
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = &c

	slog.Info("One-off poll time set", "time", c.String())
	return nil
}

// SetTimeout changes the response window
func (s *Service) SetTimeout(minutes int) error {
	if minutes < minTimeoutMinutes || minutes > maxTimeoutMinutes {
		return ErrInvalidTimeout
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.Timeout = time.Duration(minutes) * time.Minute

	slog.Info("Response timeout changed", "minutes", minutes)
	return nil
}

// SetMembers replaces the polled member list
func (s *Service) SetMembers(userIDs []string) error {
	members := make([]string, 0, len(userIDs))
	seen := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	if len(members) == 0 {
		return ErrNoMembers
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.Members = members

	slog.Info("Members changed", "count", len(members))
	return nil
}

// SetStatusChannel changes where summaries go
func (s *Service) SetStatusChannel(channelID string) error {
	if channelID == "" {
		return ErrInvalidChannel
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.StatusChannelID = channelID

	slog.Info("Status channel changed", "channel_id", channelID)
	return nil
}

// Snapshot returns the current settings and live state
func (s *Service) Snapshot() (model.Snapshot, error) {
	enabled, err := s.PollingEnabled()
	if err != nil {
		return model.Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := model.Snapshot{
		Settings:       s.settings.Clone(),
		PollingEnabled: enabled,
	}
	if s.override != nil {
		snap.NextOverride = s.override.String()
	}
	if s.active != nil {
		snap.ActivePollID = s.active.poll.ID
	}
	return snap, nil
}

func (s *Service) dueLocked() Clock {
	if s.override != nil {
		return *s.override
	}
	return Clock{Hour: s.settings.PollHour, Minute: s.settings.PollMinute}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
