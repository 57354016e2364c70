package main

import (
	"context"
	"fmt"
	"image"
	"log"
	"strconv"
	"strings"

	"signal-trader/internal/detector"
	"signal-trader/internal/feed"
)

// feedSettings selects and configures the message feed.
type feedSettings struct {
	kind      string
	endpoint  string
	channelID string
	display   int
	region    string
	ocrLang   string
}

// feedParts are the detector collaborators a feed provides. The reveal
// collaborators stay nil for feeds that cannot click.
type feedParts struct {
	feed    detector.Feed
	frames  detector.FrameSource
	clicker detector.Clicker
	locator detector.Locator
	close   func() error
}

// openFeed connects the configured feed.
func openFeed(ctx context.Context, s feedSettings, logger *log.Logger) (*feedParts, error) {
	switch strings.ToLower(s.kind) {
	case "ws":
		f, err := feed.NewWSFeed(ctx, s.endpoint, s.channelID, nil, logger)
		if err != nil {
			return nil, err
		}
		logger.Printf("WebSocket feed connected to %s (channel %s); locked messages cannot be revealed", s.endpoint, s.channelID)
		return &feedParts{feed: f, close: f.Close}, nil
	case "desktop":
		region, err := parseRegion(s.region)
		if err != nil {
			return nil, err
		}
		return openDesktopFeed(s, region, logger)
	default:
		return nil, fmt.Errorf("unknown feed %q (want ws or desktop)", s.kind)
	}
}

// parseRegion parses "x,y,w,h". An empty string selects the whole display.
func parseRegion(v string) (image.Rectangle, error) {
	if strings.TrimSpace(v) == "" {
		return image.Rectangle{}, nil
	}
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("region %q: want x,y,w,h", v)
	}
	var n [4]int
	for i, p := range parts {
		x, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("region %q: %w", v, err)
		}
		n[i] = x
	}
	if n[2] <= 0 || n[3] <= 0 {
		return image.Rectangle{}, fmt.Errorf("region %q: width and height must be positive", v)
	}
	return image.Rect(n[0], n[1], n[0]+n[2], n[1]+n[3]), nil
}
