package discord

import "strings"

// parseCommandArgs splits command text on whitespace; double quotes group words
func parseCommandArgs(text string) []string {
	if text == "" {
		return nil
	}

	var args []string
	var currentArg strings.Builder
	inQuotes := false

	for i := 0; i < len(text); i++ {
		char := text[i]

		switch char {
		case '"':
			inQuotes = !inQuotes

			if !inQuotes && currentArg.Len() > 0 {
				args = append(args, currentArg.String())
				currentArg.Reset()
			}
		case ' ', '\t', '\n', '\r':
			if inQuotes {
				currentArg.WriteByte(char)
			} else if currentArg.Len() > 0 {
				args = append(args, currentArg.String())
				currentArg.Reset()
			}
		default:
			currentArg.WriteByte(char)
		}
	}

	if currentArg.Len() > 0 {
		args = append(args, currentArg.String())
	}

	return args
}

// parseUserMention accepts <@id>, <@!id> or a bare id
func parseUserMention(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "<@") && strings.HasSuffix(value, ">") {
		value = strings.TrimPrefix(value[2:len(value)-1], "!")
	}
	return value, isSnowflake(value)
}

// parseChannelMention accepts <#id> or a bare id
func parseChannelMention(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "<#") && strings.HasSuffix(value, ">") {
		value = value[2 : len(value)-1]
	}
	return value, isSnowflake(value)
}

func isSnowflake(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func userMentions(ids []string, sep string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = "<@" + id + ">"
	}
	return strings.Join(parts, sep)
}
