package discord

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hard-gainer/status-bot/internal/killswitch"
	"github.com/hard-gainer/status-bot/internal/model"
	"github.com/hard-gainer/status-bot/internal/service"
	"go.uber.org/ratelimit"
)

type sentMessage struct {
	channelID string
	content   string
}

type fakeSession struct {
	mu        sync.Mutex
	nextID    int
	messages  []sentMessage
	reactions map[string][]string
	dmFails   map[string]bool
	handlers  int
	opened    bool
	closed    bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{reactions: map[string][]string{}, dmFails: map[string]bool{}}
}

func (f *fakeSession) Open() error {
	f.opened = true
	return nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func (f *fakeSession) AddHandler(handler interface{}) func() {
	f.handlers++
	return func() { f.handlers-- }
}

func (f *fakeSession) ChannelMessageSend(channelID string, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.messages = append(f.messages, sentMessage{channelID: channelID, content: content})
	return &discordgo.Message{ID: fmt.Sprintf("m%d", f.nextID), ChannelID: channelID, Content: content}, nil
}

func (f *fakeSession) MessageReactionAdd(channelID, messageID, emojiID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions[messageID] = append(f.reactions[messageID], emojiID)
	return nil
}

func (f *fakeSession) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if f.dmFails[recipientID] {
		return nil, errors.New("cannot open DM")
	}
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

func (f *fakeSession) last(t *testing.T) sentMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		t.Fatal("expected a message to be sent")
	}
	return f.messages[len(f.messages)-1]
}

func (f *fakeSession) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

type fixture struct {
	client   *Client
	session  *fakeSession
	service  *service.Service
	killFile string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	killFile := filepath.Join(t.TempDir(), "bot_disabled")
	svc := service.NewService(killswitch.New(killFile), nil, model.Settings{
		PollHour:        20,
		PollMinute:      59,
		Timeout:         50 * time.Millisecond,
		Members:         []string{"111"},
		StatusChannelID: "status",
		Mode:            model.PromptChannel,
		Prompt:          "work tonight?",
	})

	session := newFakeSession()
	client := newClient(session, ratelimit.NewUnlimited(), svc)
	svc.SetNotifier(client)

	client.onReady(nil, &discordgo.Ready{User: &discordgo.User{ID: "bot", Username: "status-bot"}})

	return &fixture{client: client, session: session, service: svc, killFile: killFile}
}

func (f *fixture) say(userID, content string) {
	f.client.onMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "in",
		ChannelID: "chat",
		Content:   content,
		Author:    &discordgo.User{ID: userID},
	}})
}

func TestOffCommandCreatesKillFile(t *testing.T) {
	f := newFixture(t)

	f.say("111", "!off")

	if _, err := os.Stat(f.killFile); err != nil {
		t.Fatalf("expected kill file after !off: %v", err)
	}
	if msg := f.session.last(t); msg.channelID != "chat" || !strings.Contains(msg.content, "muted") {
		t.Fatalf("unexpected reply %+v", msg)
	}
}

func TestOnCommandRemovesKillFile(t *testing.T) {
	f := newFixture(t)
	if err := os.WriteFile(f.killFile, nil, 0o644); err != nil {
		t.Fatalf("write kill file: %v", err)
	}

	f.say("111", "!ON")

	if _, err := os.Stat(f.killFile); !os.IsNotExist(err) {
		t.Fatalf("expected kill file removed after !on, stat err = %v", err)
	}
	if msg := f.session.last(t); !strings.Contains(msg.content, "live again") {
		t.Fatalf("unexpected reply %q", msg.content)
	}
}

func TestIgnoredMessages(t *testing.T) {
	f := newFixture(t)

	f.say("111", "hello there")
	f.say("111", "!unknown")
	f.say("bot", "!off")
	f.client.onMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ChannelID: "chat",
		Content:   "!off",
		Author:    &discordgo.User{ID: "222", Bot: true},
	}})

	if n := f.session.count(); n != 0 {
		t.Fatalf("expected no replies, got %d", n)
	}
	if _, err := os.Stat(f.killFile); !os.IsNotExist(err) {
		t.Fatal("bot messages must not toggle the killswitch")
	}
}

func TestSettingsCommands(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		content string
		want    string
	}{
		{content: "!settime 21:30", want: "daily poll time set to 21:30"},
		{content: "!settime 25:00", want: "format: `!settime HH:MM`"},
		{content: "!next 22:15", want: "tonight's poll at 22:15"},
		{content: "!next", want: "format: `!next HH:MM`"},
		{content: "!settimeout 20", want: "response timeout set to 20 minutes"},
		{content: "!settimeout 90", want: "between 1-60 minutes"},
		{content: "!settimeout soon", want: "format: `!settimeout MINUTES`"},
		{content: "!setmembers <@1> <@!2>", want: "members set to: <@1>, <@2>"},
		{content: "!setmembers bob", want: "not a user mention"},
		{content: "!setchannel <#900>", want: "status channel set to <#900>"},
		{content: "!ping", want: "pong"},
	}

	for _, tt := range tests {
		f.say("111", tt.content)
		if msg := f.session.last(t); !strings.Contains(msg.content, tt.want) {
			t.Fatalf("%s: reply %q does not contain %q", tt.content, msg.content, tt.want)
		}
	}

	f.say("111", "!config")
	cfg := f.session.last(t).content
	for _, want := range []string{
		"**Members:** <@1>, <@2>",
		"**Status Channel:** <#900>",
		"**Poll Time:** 21:30 (tonight: 22:15)",
		"**Timeout:** 20 minutes",
		"**Auto-poll:** 🔔 Enabled",
	} {
		if !strings.Contains(cfg, want) {
			t.Fatalf("config output %q missing %q", cfg, want)
		}
	}
}

func TestHelpListsCommands(t *testing.T) {
	f := newFixture(t)

	f.say("111", "!help")
	help := f.session.last(t).content
	for _, name := range []string{"!off", "!on", "!settime", "!config", "!showconfig", "!test"} {
		if !strings.Contains(help, "`"+name+"`") {
			t.Fatalf("help %q missing %s", help, name)
		}
	}
}

func TestTestCommandRunsPoll(t *testing.T) {
	f := newFixture(t)

	f.say("111", "!test")

	deadline := time.Now().Add(2 * time.Second)
	for {
		var summary string
		f.session.mu.Lock()
		for _, m := range f.session.messages {
			if m.channelID == "status" && strings.Contains(m.content, "session skipped") {
				summary = m.content
			}
		}
		f.session.mu.Unlock()
		if summary != "" {
			if !strings.Contains(summary, "**No response:** <@111>") {
				t.Fatalf("unexpected summary %q", summary)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("test poll summary never posted")
		}
		time.Sleep(10 * time.Millisecond)
	}

	f.session.mu.Lock()
	defer f.session.mu.Unlock()
	var prompt, reply bool
	for _, m := range f.session.messages {
		if m.channelID == "status" && strings.Contains(m.content, "TEST POLL") {
			prompt = strings.Contains(m.content, "<@111>")
		}
		if m.channelID == "chat" && strings.Contains(m.content, "sending test poll to 1 members") {
			reply = true
		}
	}
	if !prompt || !reply {
		t.Fatalf("expected prompt and reply, got %+v", f.session.messages)
	}
}

func TestReactionsReachService(t *testing.T) {
	f := newFixture(t)
	if err := f.service.SetTimeout(1); err != nil {
		t.Fatalf("SetTimeout: %v", err)
	}

	done := make(chan *model.Poll, 1)
	go func() {
		poll, _ := f.service.RunCycle(context.Background(), model.TriggerScheduled, "")
		done <- poll
	}()

	var promptID string
	deadline := time.Now().Add(2 * time.Second)
	for promptID == "" {
		f.session.mu.Lock()
		if len(f.session.reactions["m1"]) == 2 {
			promptID = "m1"
		}
		f.session.mu.Unlock()
		if time.Now().After(deadline) {
			t.Fatal("prompt never seeded with reactions")
		}
		time.Sleep(5 * time.Millisecond)
	}

	react := func(userID, emoji string) {
		f.client.onReactionAdd(nil, &discordgo.MessageReactionAdd{MessageReaction: &discordgo.MessageReaction{
			UserID:    userID,
			MessageID: promptID,
			ChannelID: "status",
			Emoji:     discordgo.Emoji{Name: emoji},
		}})
	}
	react("bot", model.EmojiYes)
	react("111", model.EmojiYes)

	select {
	case poll := <-done:
		if poll.Responses["111"].Status != model.StatusResponded {
			t.Fatalf("expected 111 responded, got %+v", poll.Responses)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("poll did not finish after the only member reacted")
	}

	if msg := f.session.last(t); !strings.Contains(msg.content, "everyone is in") {
		t.Fatalf("unexpected summary %q", msg.content)
	}
}

func TestSendDirectPrompt(t *testing.T) {
	f := newFixture(t)

	channelID, id, err := f.client.SendDirectPrompt("111", "hi")
	if err != nil {
		t.Fatalf("SendDirectPrompt: %v", err)
	}
	if msg := f.session.last(t); msg.channelID != "dm-111" || channelID != "dm-111" {
		t.Fatalf("expected DM channel, got %q / %q", msg.channelID, channelID)
	}
	if got := f.session.reactions[id]; len(got) != 0 {
		t.Fatalf("prompt should not be seeded before AddReactions, got %v", got)
	}

	f.client.AddReactions(channelID, id, []string{model.EmojiYes})
	if got := f.session.reactions[id]; len(got) != 1 || got[0] != model.EmojiYes {
		t.Fatalf("unexpected reactions %v", got)
	}

	f.session.dmFails["222"] = true
	if _, _, err := f.client.SendDirectPrompt("222", "hi"); err == nil {
		t.Fatal("expected DM failure")
	}
}

func TestShowConfigAlias(t *testing.T) {
	f := newFixture(t)

	f.say("111", "!config")
	want := f.session.last(t).content

	f.say("111", "!showconfig")
	if got := f.session.last(t).content; got != want {
		t.Fatalf("!showconfig = %q, want %q", got, want)
	}
}

func TestCloseCancelsTestPoll(t *testing.T) {
	f := newFixture(t)
	if err := f.service.SetTimeout(1); err != nil {
		t.Fatalf("SetTimeout: %v", err)
	}
	if err := f.client.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	f.say("111", "!test")
	snap, err := f.service.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.ActivePollID == "" {
		t.Fatal("expected a running test poll")
	}

	f.client.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		snap, err := f.service.Snapshot()
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if snap.ActivePollID == "" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("test poll kept running after Close")
		}
		time.Sleep(10 * time.Millisecond)
	}

	f.session.mu.Lock()
	defer f.session.mu.Unlock()
	for _, m := range f.session.messages {
		if strings.Contains(m.content, "session skipped") || strings.Contains(m.content, "everyone is in") {
			t.Fatalf("summary posted after Close: %q", m.content)
		}
	}
}

func TestOpenAndClose(t *testing.T) {
	f := newFixture(t)

	if err := f.client.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !f.session.opened || f.session.handlers != 3 {
		t.Fatalf("expected session opened with 3 handlers, got opened=%v handlers=%d", f.session.opened, f.session.handlers)
	}

	f.client.Close()
	if !f.session.closed || f.session.handlers != 0 {
		t.Fatalf("expected session closed and handlers removed, got closed=%v handlers=%d", f.session.closed, f.session.handlers)
	}
}
