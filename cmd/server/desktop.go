//go:build desktop

package main

import (
	"image"
	"log"

	"signal-trader/internal/desktop"
	"signal-trader/internal/locator"
)

func openDesktopFeed(s feedSettings, region image.Rectangle, logger *log.Logger) (*feedParts, error) {
	screen, err := desktop.NewScreen(s.display, region)
	if err != nil {
		return nil, err
	}
	ocr, err := desktop.NewOCR(s.ocrLang)
	if err != nil {
		return nil, err
	}
	logger.Printf("Desktop feed on display %d (channel %s)", s.display, s.channelID)
	return &feedParts{
		feed:    desktop.NewFeed(screen, ocr, s.channelID),
		frames:  screen,
		clicker: screen,
		locator: locator.New(locator.DefaultConfig(), ocr),
		close:   ocr.Close,
	}, nil
}
