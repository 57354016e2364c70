package replay

import (
	"sort"

	"signal-trader/internal/domain"
)

// SortMessages orders messages by (observed_at ASC, channel_id ASC, id ASC, text ASC).
// Text breaks ties between two observations of one message, e.g. before and
// after a reveal.
func SortMessages(msgs []domain.RawMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return compareMessages(&msgs[i], &msgs[j]) < 0
	})
}

// CheckOrdered returns ErrInvalidOrdering if msgs are not sorted.
func CheckOrdered(msgs []domain.RawMessage) error {
	for i := 1; i < len(msgs); i++ {
		if compareMessages(&msgs[i-1], &msgs[i]) > 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// compareMessages returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
func compareMessages(a, b *domain.RawMessage) int {
	if a.ObservedAt != b.ObservedAt {
		if a.ObservedAt < b.ObservedAt {
			return -1
		}
		return 1
	}
	if c := compareStrings(a.ChannelID, b.ChannelID); c != 0 {
		return c
	}
	if c := compareStrings(a.ID, b.ID); c != 0 {
		return c
	}
	return compareStrings(a.Text, b.Text)
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
