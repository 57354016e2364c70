package domain

import "image"

// RawMessage is an immutable snapshot of one observed chat message.
// Created by a feed; never mutated afterwards.
type RawMessage struct {
	ID         string          `json:"id"`          // channel-scoped message identifier
	Author     string          `json:"author"`      // author handle as rendered by the feed
	Text       string          `json:"text"`        // message body
	ChannelID  string          `json:"channel_id"`  // source channel
	ObservedAt int64           `json:"observed_at"` // Unix timestamp in milliseconds
	Region     image.Rectangle `json:"-"`           // on-screen bounds (empty for direct feeds)
}

// HasRegion reports whether the feed attached screen geometry to the message.
func (m RawMessage) HasRegion() bool {
	return !m.Region.Empty()
}
