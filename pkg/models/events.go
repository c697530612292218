package models

// MessageEvent is an inbound chat message delivered by the platform
// connector. Only events in the configured vouch channel are inspected.
type MessageEvent struct {
	AuthorID  string `json:"author_id"`
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
}

// MessageDeletedEvent is an inbound message-deleted notification.
type MessageDeletedEvent struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}
