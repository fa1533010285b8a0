package discord

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hard-gainer/status-bot/internal/service"
)

var commandHelp = map[string]string{
	"off":        "mute auto-polls",
	"on":         "unmute auto-polls",
	"settime":    "permanently set poll time, ex: `!settime 21:30`",
	"next":       "override tonight only, ex: `!next 22:00`",
	"settimeout": "set response timeout in minutes, ex: `!settimeout 20`",
	"setmembers": "set which users to poll, ex: `!setmembers @user1 @user2`",
	"setchannel": "set status channel for summaries, ex: `!setchannel #status`",
	"config":     "show current configuration",
	"showconfig": "same as `!config`",
	"ping":       "simple ping test",
	"test":       "test poll (sends the prompt immediately)",
	"help":       "show this message",
}

// handleOff engages the killswitch
func (c *Client) handleOff(args []string, userID, channelID string) (string, error) {
	if err := c.pollHandler.DisablePolling(); err != nil {
		return "", err
	}
	return "auto-poll muted ✅", nil
}

// handleOn releases the killswitch
func (c *Client) handleOn(args []string, userID, channelID string) (string, error) {
	if err := c.pollHandler.EnablePolling(); err != nil {
		return "", err
	}
	return "auto-poll live again 🔔", nil
}

// handleSetTime changes the daily poll time
func (c *Client) handleSetTime(args []string, userID, channelID string) (string, error) {
	if len(args) < 1 {
		return "format: `!settime HH:MM` (24h)", nil
	}

	clock, err := service.ParseClock(args[0])
	if err != nil {
		return "format: `!settime HH:MM` (24h)", nil
	}

	if err := c.pollHandler.SetPollTime(clock); err != nil {
		return "", err
	}
	return fmt.Sprintf("daily poll time set to %s ✅", clock), nil
}

// handleNext sets a one-off poll time
func (c *Client) handleNext(args []string, userID, channelID string) (string, error) {
	if len(args) < 1 {
		return "format: `!next HH:MM` (24h)", nil
	}

	clock, err := service.ParseClock(args[0])
	if err != nil {
		return "format: `!next HH:MM` (24h)", nil
	}

	if err := c.pollHandler.SetNextPoll(clock); err != nil {
		return "", err
	}
	return fmt.Sprintf("override set: tonight's poll at %s ⏰", clock), nil
}

// handleSetTimeout changes the response window
func (c *Client) handleSetTimeout(args []string, userID, channelID string) (string, error) {
	if len(args) < 1 {
		return "format: `!settimeout MINUTES`", nil
	}

	minutes, err := strconv.Atoi(args[0])
	if err != nil {
		return "format: `!settimeout MINUTES`", nil
	}

	if err := c.pollHandler.SetTimeout(minutes); err != nil {
		if errors.Is(err, service.ErrInvalidTimeout) {
			return "timeout must be between 1-60 minutes", nil
		}
		return "", err
	}
	return fmt.Sprintf("response timeout set to %d minutes ✅", minutes), nil
}

// handleSetMembers replaces the polled members
func (c *Client) handleSetMembers(args []string, userID, channelID string) (string, error) {
	ids := make([]string, 0, len(args))
	for _, arg := range args {
		id, ok := parseUserMention(arg)
		if !ok {
			return fmt.Sprintf("not a user mention: `%s`\nformat: `!setmembers @user1 @user2 @user3...`", arg), nil
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return "format: `!setmembers @user1 @user2 @user3...`", nil
	}

	if err := c.pollHandler.SetMembers(ids); err != nil {
		return "", err
	}

	snap, err := c.pollHandler.Snapshot()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("members set to: %s ✅", userMentions(snap.Members, ", ")), nil
}

// handleSetChannel changes the summary channel
func (c *Client) handleSetChannel(args []string, userID, channelID string) (string, error) {
	if len(args) < 1 {
		return "format: `!setchannel #channel`", nil
	}

	id, ok := parseChannelMention(args[0])
	if !ok {
		return "format: `!setchannel #channel`", nil
	}

	if err := c.pollHandler.SetStatusChannel(id); err != nil {
		return "", err
	}
	return fmt.Sprintf("status channel set to <#%s> ✅", id), nil
}

// handleConfig prints the current configuration
func (c *Client) handleConfig(args []string, userID, channelID string) (string, error) {
	snap, err := c.pollHandler.Snapshot()
	if err != nil {
		return "", err
	}

	members := "None set"
	if len(snap.Members) > 0 {
		members = userMentions(snap.Members, ", ")
	}

	statusChannel := "Not set"
	if snap.StatusChannelID != "" {
		statusChannel = "<#" + snap.StatusChannelID + ">"
	}

	pollTime := service.Clock{Hour: snap.PollHour, Minute: snap.PollMinute}.String()
	if snap.NextOverride != "" {
		pollTime += fmt.Sprintf(" (tonight: %s)", snap.NextOverride)
	}

	autoPoll := "🔔 Enabled"
	if !snap.PollingEnabled {
		autoPoll = "🔇 Disabled"
	}

	var b strings.Builder
	b.WriteString("### Bot Configuration\n")
	fmt.Fprintf(&b, "**Members:** %s\n", members)
	fmt.Fprintf(&b, "**Status Channel:** %s\n", statusChannel)
	fmt.Fprintf(&b, "**Poll Time:** %s\n", pollTime)
	fmt.Fprintf(&b, "**Timeout:** %d minutes\n", int(snap.Timeout/time.Minute))
	fmt.Fprintf(&b, "**Prompt Mode:** %s\n", snap.Mode)
	fmt.Fprintf(&b, "**Auto-poll:** %s", autoPoll)
	if snap.ActivePollID != "" {
		fmt.Fprintf(&b, "\n**Running Poll:** `%s`", snap.ActivePollID)
	}

	return b.String(), nil
}

func (c *Client) handlePing(args []string, userID, channelID string) (string, error) {
	return "🏓 pong!", nil
}

// handleTest starts a poll right away; the summary follows when it closes
func (c *Client) handleTest(args []string, userID, channelID string) (string, error) {
	count, err := c.pollHandler.StartTestPoll(c.baseContext(), channelID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoMembers):
			return "❌ no members configured! use `!setmembers @user1 @user2...` first", nil
		case errors.Is(err, service.ErrPollInProgress):
			return "⏳ a poll is already running, try again once it closes", nil
		}
		return "", err
	}

	return fmt.Sprintf("🧪 sending test poll to %d members...", count), nil
}

func (c *Client) handleHelp(args []string, userID, channelID string) (string, error) {
	var b strings.Builder
	b.WriteString("### Commands\n")
	for _, name := range c.order {
		fmt.Fprintf(&b, "`%s%s` - %s\n", CommandPrefix, name, commandHelp[name])
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}
