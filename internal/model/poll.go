package model

import "time"

// reaction options seeded on every prompt
const (
	EmojiYes = "✅"
	EmojiNo  = "❌"
)

// Trigger says what started a poll cycle
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerTest      Trigger = "test"
)

// ResponseStatus is a member's state in a poll
type ResponseStatus string

const (
	StatusResponded  ResponseStatus = "responded"
	StatusNoResponse ResponseStatus = "no_response"
)

// Answer is what a member reacted with
type Answer string

const (
	AnswerYes   Answer = "yes"
	AnswerNo    Answer = "no"
	AnswerOther Answer = "other"
)

// AnswerForEmoji maps a reaction to an answer
func AnswerForEmoji(emoji string) Answer {
	switch emoji {
	case EmojiYes:
		return AnswerYes
	case EmojiNo:
		return AnswerNo
	default:
		return AnswerOther
	}
}

// Response is one member's result
type Response struct {
	Status ResponseStatus `json:"status"`
	Answer Answer         `json:"answer,omitempty"`
	At     time.Time      `json:"at,omitempty"`
}

// Poll is a single nightly cycle. It lives only until its summary is posted.
type Poll struct {
	ID         string              `json:"id"`
	Trigger    Trigger             `json:"trigger"`
	StartedAt  time.Time           `json:"started_at"`
	Deadline   time.Time           `json:"deadline"`
	Members    []string            `json:"members"`
	MessageIDs []string            `json:"message_ids"`
	Responses  map[string]Response `json:"responses"` // map[user_id] = response
	Closed     bool                `json:"closed"`
}

// NewPoll creates an open poll for the given members
func NewPoll(id string, trigger Trigger, members []string, startedAt time.Time, timeout time.Duration) *Poll {
	cp := make([]string, len(members))
	copy(cp, members)

	return &Poll{
		ID:        id,
		Trigger:   trigger,
		StartedAt: startedAt,
		Deadline:  startedAt.Add(timeout),
		Members:   cp,
		Responses: make(map[string]Response),
	}
}

// IsMember reports whether userID is polled
func (p *Poll) IsMember(userID string) bool {
	for _, m := range p.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// HasMessage reports whether messageID is one of the poll's prompts
func (p *Poll) HasMessage(messageID string) bool {
	for _, id := range p.MessageIDs {
		if id == messageID {
			return true
		}
	}
	return false
}

// Record stores a member's reaction. Non-members and closed polls are ignored.
func (p *Poll) Record(userID, emoji string, at time.Time) bool {
	if p.Closed || !p.IsMember(userID) {
		return false
	}

	p.Responses[userID] = Response{
		Status: StatusResponded,
		Answer: AnswerForEmoji(emoji),
		At:     at,
	}
	return true
}

// Close ends the poll and marks everyone who did not react
func (p *Poll) Close() {
	if p.Closed {
		return
	}
	for _, m := range p.Members {
		if _, ok := p.Responses[m]; !ok {
			p.Responses[m] = Response{Status: StatusNoResponse}
		}
	}
	p.Closed = true
}

// Responded returns members who reacted, in member order
func (p *Poll) Responded() []string {
	return p.filter(func(r Response, ok bool) bool { return ok && r.Status == StatusResponded })
}

// Missing returns members who have not reacted, in member order
func (p *Poll) Missing() []string {
	return p.filter(func(r Response, ok bool) bool { return !ok || r.Status != StatusResponded })
}

// AllResponded is true once every member reacted
func (p *Poll) AllResponded() bool {
	return len(p.Missing()) == 0
}

// EveryoneAvailable is true when every member answered yes
func (p *Poll) EveryoneAvailable() bool {
	if len(p.Members) == 0 {
		return false
	}
	for _, m := range p.Members {
		if p.Responses[m].Answer != AnswerYes {
			return false
		}
	}
	return true
}

func (p *Poll) filter(keep func(Response, bool) bool) []string {
	out := make([]string, 0, len(p.Members))
	for _, m := range p.Members {
		r, ok := p.Responses[m]
		if keep(r, ok) {
			out = append(out, m)
		}
	}
	return out
}
