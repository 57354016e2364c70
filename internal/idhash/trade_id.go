package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256("trade"|signal_id)
// A signal opens at most one trade, so the signal id is a sufficient key.
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(signalID string) string {
	data := fmt.Sprintf("trade|%s", signalID)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
