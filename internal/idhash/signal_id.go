package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ComputeSignalID computes a deterministic signal_id using SHA256.
// Formula: SHA256(channel_id|source_message_id)
// Returns hex-encoded hash (64 characters).
func ComputeSignalID(channelID, sourceMessageID string) string {
	data := fmt.Sprintf("%s|%s", channelID, sourceMessageID)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeMessageID derives a message identifier for feeds that expose none
// (screen capture). Formula: SHA256(channel_id|author|posted_label|first_line)
// truncated to 32 hex characters. Whitespace and case in the first line are
// normalized so OCR jitter between scans maps to the same id.
func ComputeMessageID(channelID, author, postedLabel, text string) string {
	firstLine := text
	if i := strings.IndexByte(firstLine, '\n'); i >= 0 {
		firstLine = firstLine[:i]
	}
	firstLine = strings.ToLower(strings.Join(strings.Fields(firstLine), " "))

	data := fmt.Sprintf("%s|%s|%s|%s",
		channelID,
		strings.ToLower(strings.TrimSpace(author)),
		strings.ToLower(strings.TrimSpace(postedLabel)),
		firstLine,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}
