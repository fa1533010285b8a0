package notification

// MessageSender represents an interface for sending messages
type MessageSender interface {
	PostMessage(channelID, message string) error
}

// PromptSender sends poll prompts. Reactions are added in a separate step so
// the caller can start tracking the message before anyone can react to it.
type PromptSender interface {
	SendChannelPrompt(channelID, message string) (messageID string, err error)
	SendDirectPrompt(userID, message string) (channelID, messageID string, err error)
	AddReactions(channelID, messageID string, reactions []string)
}

// Notifier is everything the poll service needs from the chat platform
type Notifier interface {
	MessageSender
	PromptSender
}
