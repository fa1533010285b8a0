package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// prompt modes
const (
	ModeChannel = "channel"
	ModeDM      = "dm"
)

// Config contains app config
type Config struct {
	DiscordConfig
	PollConfig
	LogConfig
}

// DiscordConfig contains Discord connection config
type DiscordConfig struct {
	DiscordToken      string
	MessagesPerSecond int
}

// PollConfig contains the nightly poll config
type PollConfig struct {
	MemberIDs       []string
	StatusChannelID string
	PollChannelID   string
	PollMode        string
	PollPrompt      string
	PollHour        int
	PollMinute      int
	PollTimezone    string
	TimeoutMinutes  int
	KillFile        string
	LockFile        string
}

// LogConfig contains logger config
type LogConfig struct {
	LogLevel  string
	LogFormat string
}

// NewConfig creates a new config
func NewConfig() *Config {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Println("Error loading .env file:", err)
	}

	statusChannel := getEnv("STATUS_CHANNEL_ID", "")

	return &Config{
		DiscordConfig: DiscordConfig{
			DiscordToken:      getEnv("DISCORD_TOKEN", ""),
			MessagesPerSecond: getEnvInt("DISCORD_MESSAGES_PER_SECOND", 5),
		},
		PollConfig: PollConfig{
			MemberIDs:       ParseMemberIDs(getEnv("MEMBER_IDS", "")),
			StatusChannelID: statusChannel,
			PollChannelID:   getEnv("POLL_CHANNEL_ID", statusChannel),
			PollMode:        strings.ToLower(getEnv("POLL_MODE", ModeChannel)),
			PollPrompt:      getEnv("POLL_PROMPT", "work on the project tonight?"),
			PollHour:        getEnvInt("POLL_HOUR", 20),
			PollMinute:      getEnvInt("POLL_MINUTE", 59),
			PollTimezone:    getEnv("POLL_TIMEZONE", "Local"),
			TimeoutMinutes:  getEnvInt("TIMEOUT_MIN", 15),
			KillFile:        getEnv("KILL_FILE", "bot_disabled"),
			LockFile:        getEnv("LOCK_FILE", "status-bot.lock"),
		},
		LogConfig: LogConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// Validate checks the values needed to run the bot
func (c *Config) Validate() error {
	if c.DiscordToken == "" {
		return errors.New("DISCORD_TOKEN is required")
	}
	if c.PollHour < 0 || c.PollHour > 23 {
		return fmt.Errorf("POLL_HOUR must be between 0 and 23, got %d", c.PollHour)
	}
	if c.PollMinute < 0 || c.PollMinute > 59 {
		return fmt.Errorf("POLL_MINUTE must be between 0 and 59, got %d", c.PollMinute)
	}
	if c.TimeoutMinutes <= 0 {
		return fmt.Errorf("TIMEOUT_MIN must be positive, got %d", c.TimeoutMinutes)
	}
	if c.PollMode != ModeChannel && c.PollMode != ModeDM {
		return fmt.Errorf("POLL_MODE must be %q or %q, got %q", ModeChannel, ModeDM, c.PollMode)
	}
	for _, id := range c.MemberIDs {
		if _, err := strconv.ParseUint(id, 10, 64); err != nil {
			return fmt.Errorf("MEMBER_IDS contains invalid user id %q", id)
		}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Timeout returns the response window as a duration
func (c *PollConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// Location resolves the schedule time zone
func (c *PollConfig) Location() (*time.Location, error) {
	if c.PollTimezone == "" || strings.EqualFold(c.PollTimezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.PollTimezone)
	if err != nil {
		return nil, fmt.Errorf("POLL_TIMEZONE is invalid: %w", err)
	}
	return loc, nil
}

// ParseMemberIDs splits a comma separated id list, dropping blanks and duplicates
func ParseMemberIDs(raw string) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0)

	for _, part := range strings.Split(raw, ",") {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	return ids
}

// getEnv is a helper function for receiving env variables with default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt is like getEnv but parses an integer
func getEnvInt(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid integer for %s=%q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}
