package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hard-gainer/status-bot/internal/model"
)

// Clock is a time of day in 24h form
type Clock struct {
	Hour   int
	Minute int
}

// Valid reports whether the clock is a real time of day
func (c Clock) Valid() bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseClock parses "HH:MM"
func ParseClock(value string) (Clock, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return Clock{}, ErrInvalidTime
	}

	h, err := strconv.Atoi(hh)
	if err != nil {
		return Clock{}, ErrInvalidTime
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return Clock{}, ErrInvalidTime
	}

	c := Clock{Hour: h, Minute: m}
	if !c.Valid() {
		return Clock{}, ErrInvalidTime
	}
	return c, nil
}

// FormatSummary renders the status channel message for a closed poll
func FormatSummary(poll *model.Poll) string {
	var b strings.Builder

	if poll.Trigger == model.TriggerTest {
		b.WriteString("🧪 ")
	}

	day := poll.StartedAt.Format("Jan 02")
	if poll.EveryoneAvailable() {
		fmt.Fprintf(&b, "✅ **%s** everyone is in – hop on voice!", day)
	} else {
		fmt.Fprintf(&b, "❌ **%s** session skipped (not all confirmed)", day)
	}

	if responded := poll.Responded(); len(responded) > 0 {
		parts := make([]string, 0, len(responded))
		for _, id := range responded {
			parts = append(parts, fmt.Sprintf("%s (%s)", mention(id), answerLabel(poll.Responses[id].Answer)))
		}
		b.WriteString("\n**Responded:** ")
		b.WriteString(strings.Join(parts, ", "))
	}

	if missing := poll.Missing(); len(missing) > 0 {
		b.WriteString("\n**No response:** ")
		b.WriteString(mentions(missing))
	}

	return b.String()
}

func answerLabel(a model.Answer) string {
	switch a {
	case model.AnswerYes:
		return "work"
	case model.AnswerNo:
		return "skip"
	default:
		return "reacted"
	}
}

func mention(userID string) string {
	return "<@" + userID + ">"
}

func mentions(userIDs []string) string {
	parts := make([]string, len(userIDs))
	for i, id := range userIDs {
		parts[i] = mention(id)
	}
	return strings.Join(parts, " ")
}
