package feed

import (
	"image"
	"regexp"
	"strings"

	"signal-trader/internal/domain"
	"signal-trader/internal/idhash"
)

// Line is one recognized text line with its screen bounds, top to bottom.
type Line struct {
	Text   string
	Bounds image.Rectangle
}

// headerPattern matches a message header such as
// "yramki — Today at 3:45 PM", "Tareeq APP Yesterday at 11:02 AM" or
// "bryce — 03/14/2025 9:15 AM".
var headerPattern = regexp.MustCompile(
	`^\s*(.+?)\s*(?:[—–-]\s*)?((?:Today|Yesterday) at \d{1,2}:\d{2}\s*[AP]M|\d{1,2}/\d{1,2}/\d{2,4},?\s+\d{1,2}:\d{2}\s*[AP]M)\s*$`)

// appBadge is the bot marker rendered after some author names.
var appBadge = regexp.MustCompile(`\s+(?:APP|BOT)$`)

// SplitBlocks groups recognized lines into messages. Each header line opens a
// message; following lines up to the next header form its body. Lines above
// the first header belong to a message whose header scrolled off-screen and
// are dropped.
//
// The message id hashes channel, author, posted label and body, so the same
// rendered message yields the same id on every capture.
func SplitBlocks(channelID string, lines []Line, observedAt int64) []domain.RawMessage {
	var (
		out    []domain.RawMessage
		cur    *domain.RawMessage
		posted string
		body   []string
	)

	flush := func() {
		if cur == nil {
			return
		}
		cur.Text = strings.TrimSpace(strings.Join(body, "\n"))
		if cur.Text != "" {
			cur.ID = idhash.ComputeMessageID(channelID, cur.Author, posted, cur.Text)
			out = append(out, *cur)
		}
		cur, body = nil, nil
	}

	for _, l := range lines {
		text := strings.TrimSpace(l.Text)
		if text == "" {
			continue
		}
		if m := headerPattern.FindStringSubmatch(text); m != nil {
			flush()
			cur = &domain.RawMessage{
				Author:     appBadge.ReplaceAllString(m[1], ""),
				ChannelID:  channelID,
				ObservedAt: observedAt,
				Region:     l.Bounds,
			}
			posted = m[2]
			continue
		}
		if cur == nil {
			continue
		}
		body = append(body, text)
		cur.Region = cur.Region.Union(l.Bounds)
	}
	flush()

	return out
}
