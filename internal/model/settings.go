package model

import "time"

// PromptMode decides where the prompt goes
type PromptMode string

const (
	PromptChannel PromptMode = "channel"
	PromptDM      PromptMode = "dm"
)

// Settings is the runtime view of the poll configuration
type Settings struct {
	PollHour        int           `json:"poll_hour"`
	PollMinute      int           `json:"poll_minute"`
	Timeout         time.Duration `json:"timeout"`
	Members         []string      `json:"members"`
	StatusChannelID string        `json:"status_channel_id"`
	PollChannelID   string        `json:"poll_channel_id"`
	Mode            PromptMode    `json:"mode"`
	Prompt          string        `json:"prompt"`
}

// Clone returns a copy safe to hand out
func (s Settings) Clone() Settings {
	members := make([]string, len(s.Members))
	copy(members, s.Members)
	s.Members = members
	return s
}

// Snapshot is Settings plus live state, used by the config command
type Snapshot struct {
	Settings
	PollingEnabled bool
	NextOverride   string
	ActivePollID   string
}
