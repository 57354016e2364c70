package config

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads path into store whenever it is written, created or renamed
// into place. An unreadable or invalid file keeps the previous snapshot.
// It blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, store *Store, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory: editors replace files rather than writing in place.
	target := filepath.Clean(path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			data, err := os.ReadFile(target)
			if err != nil {
				logger.Printf("Config reload failed, keeping previous: %v", err)
				continue
			}
			// Truncate-then-write shows up as an empty file first.
			if len(bytes.TrimSpace(data)) == 0 {
				continue
			}
			f, err := Parse(data)
			if err != nil {
				logger.Printf("Config reload rejected, keeping previous: %v", err)
				continue
			}
			store.Update(f)
			r := store.Risk()
			logger.Printf("Config reloaded: amount=%.2f max_leverage=%.0f auto_execute=%t max_trades=%d",
				r.AmountPerTrade, r.MaxLeverage, r.AutoExecute, r.MaxSimultaneousTrades)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Printf("Config watcher error: %v", err)
		}
	}
}
