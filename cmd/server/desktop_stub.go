//go:build !desktop

package main

import (
	"errors"
	"image"
	"log"
)

func openDesktopFeed(feedSettings, image.Rectangle, *log.Logger) (*feedParts, error) {
	return nil, errors.New("desktop feed not compiled in; rebuild with -tags desktop")
}
