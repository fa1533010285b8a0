package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/hard-gainer/status-bot/internal/config"
	"github.com/hard-gainer/status-bot/internal/model"
	"github.com/hard-gainer/status-bot/internal/service"
	"go.uber.org/ratelimit"
)

// constants for the client
const (
	CommandPrefix = "!"

	defaultMessagesPerSecond = 5

	Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsDirectMessageReactions
)

// PollHandler is the poll service surface used by chat commands
type PollHandler interface {
	DisablePolling() error
	EnablePolling() error
	SetPollTime(c service.Clock) error
	SetNextPoll(c service.Clock) error
	SetTimeout(minutes int) error
	SetMembers(userIDs []string) error
	SetStatusChannel(channelID string) error
	Snapshot() (model.Snapshot, error)
	StartTestPoll(ctx context.Context, replyChannelID string) (int, error)
	HandleReaction(messageID, userID, emoji string)
}

// Session is the part of *discordgo.Session the client uses
type Session interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// CommandHandler defines a function command handler
type CommandHandler func(args []string, userID, channelID string) (string, error)

// Client provides a client for work with the Discord API
type Client struct {
	session     Session
	limiter     ratelimit.Limiter
	handlers    map[string]CommandHandler
	order       []string
	pollHandler PollHandler

	mu             sync.RWMutex
	botUserID      string
	removeHandlers []func()
	ctx            context.Context
	cancel         context.CancelFunc
}

// NewClient creates a new Discord client. The gateway is not opened until Open.
func NewClient(cfg config.DiscordConfig, handler PollHandler) (*Client, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = Intents

	rate := cfg.MessagesPerSecond
	if rate <= 0 {
		rate = defaultMessagesPerSecond
	}

	return newClient(session, ratelimit.New(rate), handler), nil
}

func newClient(session Session, limiter ratelimit.Limiter, handler PollHandler) *Client {
	client := &Client{
		session:     session,
		limiter:     limiter,
		pollHandler: handler,
		handlers:    make(map[string]CommandHandler),
	}
	client.ctx, client.cancel = context.WithCancel(context.Background())

	client.RegisterCommandHandlers()
	return client
}

// Open registers event handlers and connects to the gateway. Work started
// from chat commands is cancelled with ctx or on Close.
func (c *Client) Open(ctx context.Context) error {
	c.mu.Lock()
	c.cancel()
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.removeHandlers = append(c.removeHandlers,
		c.session.AddHandler(c.onReady),
		c.session.AddHandler(c.onMessageCreate),
		c.session.AddHandler(c.onReactionAdd),
	)
	c.mu.Unlock()

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}

	slog.Info("Started listening for Discord events")
	return nil
}

// Close closes the gateway connection
func (c *Client) Close() {
	c.mu.Lock()
	c.cancel()
	for _, remove := range c.removeHandlers {
		remove()
	}
	c.removeHandlers = nil
	c.mu.Unlock()

	if err := c.session.Close(); err != nil {
		slog.Error("Failed to close Discord session", "error", err)
		return
	}

	slog.Info("Discord session closed")
}

// RegisterCommandHandlers registers command handlers
func (c *Client) RegisterCommandHandlers() {
	c.RegisterCommandHandler("off", c.handleOff)
	c.RegisterCommandHandler("on", c.handleOn)
	c.RegisterCommandHandler("settime", c.handleSetTime)
	c.RegisterCommandHandler("next", c.handleNext)
	c.RegisterCommandHandler("settimeout", c.handleSetTimeout)
	c.RegisterCommandHandler("setmembers", c.handleSetMembers)
	c.RegisterCommandHandler("setchannel", c.handleSetChannel)
	c.RegisterCommandHandler("config", c.handleConfig)
	c.RegisterCommandHandler("showconfig", c.handleConfig)
	c.RegisterCommandHandler("ping", c.handlePing)
	c.RegisterCommandHandler("test", c.handleTest)
	c.RegisterCommandHandler("help", c.handleHelp)
}

// RegisterCommandHandler registers command handler
func (c *Client) RegisterCommandHandler(command string, handler CommandHandler) {
	slog.Debug("Registering handler for command", "command", command)
	if _, exists := c.handlers[command]; !exists {
		c.order = append(c.order, command)
	}
	c.handlers[command] = handler
}

// HandleCommand runs a registered command by name
func (c *Client) HandleCommand(command string, args []string, userID, channelID string) (string, error) {
	commandName := strings.ToLower(strings.TrimPrefix(command, CommandPrefix))

	handler, exists := c.handlers[commandName]
	if !exists {
		return "", fmt.Errorf("unknown command: %s", commandName)
	}

	return handler(args, userID, channelID)
}

func (c *Client) baseContext() context.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ctx
}

func (c *Client) botID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.botUserID
}

func (c *Client) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r.User == nil {
		return
	}

	c.mu.Lock()
	c.botUserID = r.User.ID
	c.mu.Unlock()

	slog.Info("Connected as bot user", "username", r.User.Username, "user_id", r.User.ID)
}

// onMessageCreate routes prefixed messages to command handlers
func (c *Client) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil || m.Author == nil || m.Author.Bot || m.Author.ID == c.botID() {
		return
	}

	content := strings.TrimSpace(m.Content)
	if !strings.HasPrefix(content, CommandPrefix) {
		return
	}

	parts := parseCommandArgs(strings.TrimPrefix(content, CommandPrefix))
	if len(parts) == 0 {
		return
	}

	commandName := strings.ToLower(parts[0])
	if _, exists := c.handlers[commandName]; !exists {
		return
	}

	slog.Info("Processing command",
		"command", commandName,
		"args", parts[1:],
		"user_id", m.Author.ID,
		"channel_id", m.ChannelID)

	response, err := c.HandleCommand(commandName, parts[1:], m.Author.ID, m.ChannelID)
	if err != nil {
		slog.Error("Failed to handle command", "command", commandName, "error", err)
		c.PostMessage(m.ChannelID, fmt.Sprintf("Error: %v", err))
		return
	}

	if response != "" {
		c.PostMessage(m.ChannelID, response)
	}
}

// onReactionAdd forwards reactions to the running poll
func (c *Client) onReactionAdd(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.MessageReaction == nil || r.UserID == c.botID() {
		return
	}

	c.pollHandler.HandleReaction(r.MessageID, r.UserID, r.Emoji.Name)
}

// PostMessage posts message to the channel
func (c *Client) PostMessage(channelID, message string) error {
	c.limiter.Take()

	if _, err := c.session.ChannelMessageSend(channelID, message); err != nil {
		slog.Error("Failed to post message", "channel_id", channelID, "error", err)
		return err
	}

	return nil
}

// SendChannelPrompt posts a prompt and returns its message id
func (c *Client) SendChannelPrompt(channelID, message string) (string, error) {
	c.limiter.Take()

	msg, err := c.session.ChannelMessageSend(channelID, message)
	if err != nil {
		return "", fmt.Errorf("failed to send prompt: %w", err)
	}

	return msg.ID, nil
}

// SendDirectPrompt sends the prompt as a DM to a single user and returns the
// DM channel id along with the message id
func (c *Client) SendDirectPrompt(userID, message string) (string, string, error) {
	c.limiter.Take()

	channel, err := c.session.UserChannelCreate(userID)
	if err != nil {
		return "", "", fmt.Errorf("failed to create DM channel for user %s: %w", userID, err)
	}

	messageID, err := c.SendChannelPrompt(channel.ID, message)
	if err != nil {
		return "", "", err
	}
	return channel.ID, messageID, nil
}

// AddReactions seeds a message with the reaction options
func (c *Client) AddReactions(channelID, messageID string, reactions []string) {
	for _, emoji := range reactions {
		c.limiter.Take()
		if err := c.session.MessageReactionAdd(channelID, messageID, emoji); err != nil {
			slog.Warn("Failed to seed reaction", "message_id", messageID, "emoji", emoji, "error", err)
		}
	}
}
