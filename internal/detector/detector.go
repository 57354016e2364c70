// Package detector watches a chat feed for trade signals from allow-listed
// traders, revealing gated messages before parsing them.
//
// Each observed message moves unseen → candidate → locked | unlocked →
// gated_pass | gated_fail → ingested | discarded. Terminal ids go into a
// seen-set that never shrinks. Locked messages that cannot be revealed stay
// pending and are retried on the next cycle.
package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"strings"
	"time"

	"signal-trader/internal/domain"
	"signal-trader/internal/fuzzy"
	"signal-trader/internal/locator"
	"signal-trader/internal/observability"
	"signal-trader/internal/parser"
	"signal-trader/internal/storage"
	"signal-trader/internal/traders"
)

// Detector runs the detection state machine. It is not safe for concurrent
// use; Run drives it from a single goroutine.
type Detector struct {
	cfg     Config
	feed    Feed
	frames  FrameSource
	clicker Clicker
	locator Locator
	parser  *parser.Parser
	seenDB  storage.SeenMessageStore
	sink    Sink
	allow   func() domain.TraderAllowList
	metrics *observability.Metrics
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *log.Logger

	seen    map[string]struct{}
	pending map[string]int // locked message id -> failed reveal attempts
}

// Options contains configuration for creating a Detector.
type Options struct {
	Config  Config
	Feed    Feed
	Frames  FrameSource // required to reveal locked messages
	Clicker Clicker     // required to reveal locked messages
	Locator Locator     // required to reveal locked messages
	Parser  *parser.Parser
	Seen    storage.SeenMessageStore // optional persistence for the seen-set
	Sink    Sink
	// Traders returns the current allow-list snapshot.
	Traders func() domain.TraderAllowList
	Metrics *observability.Metrics
	// Sleep waits for d or ctx. Default: timer-based wait.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *log.Logger
}

// New creates a detector.
func New(opts Options) *Detector {
	p := opts.Parser
	if p == nil {
		p = parser.New()
	}

	allow := opts.Traders
	if allow == nil {
		allow = func() domain.TraderAllowList { return domain.TraderAllowList{} }
	}

	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Detector{
		cfg:     opts.Config.withDefaults(),
		feed:    opts.Feed,
		frames:  opts.Frames,
		clicker: opts.Clicker,
		locator: opts.Locator,
		parser:  p,
		seenDB:  opts.Seen,
		sink:    opts.Sink,
		allow:   allow,
		metrics: opts.Metrics,
		sleep:   sleep,
		logger:  logger,
		seen:    make(map[string]struct{}),
		pending: make(map[string]int),
	}
}

// Warm loads the persisted seen-set for the channel.
func (d *Detector) Warm(ctx context.Context) error {
	if d.seenDB == nil {
		return nil
	}
	ids, err := d.seenDB.LoadSeen(ctx, d.cfg.ChannelID)
	if err != nil {
		return fmt.Errorf("load seen messages: %w", err)
	}
	for _, id := range ids {
		d.seen[id] = struct{}{}
	}
	d.logger.Printf("Detector warmed with %d seen messages for channel %q", len(ids), d.cfg.ChannelID)
	return nil
}

// Run scans on ScanInterval and performs a scroll sweep on ScrollInterval.
// Cycles never overlap. It blocks until ctx is cancelled.
func (d *Detector) Run(ctx context.Context) error {
	if err := d.Warm(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(d.cfg.ScanInterval)
	defer ticker.Stop()

	scrollTicker := time.NewTicker(d.cfg.ScrollInterval)
	defer scrollTicker.Stop()

	d.logger.Printf("Detector started, scan interval: %v, scroll interval: %v", d.cfg.ScanInterval, d.cfg.ScrollInterval)

	for {
		select {
		case <-ctx.Done():
			d.logger.Println("Detector stopping...")
			return ctx.Err()

		case <-ticker.C:
			if _, err := d.Scan(ctx); err != nil && ctx.Err() == nil {
				d.logger.Printf("Scan failed: %v", err)
			}

		case <-scrollTicker.C:
			if err := d.Sweep(ctx); err != nil && ctx.Err() == nil {
				d.logger.Printf("Scroll sweep failed: %v", err)
			}
		}
	}
}

// Sweep scrolls up to surface messages that arrived off-screen, scans, then
// returns to the bottom of the feed.
func (d *Detector) Sweep(ctx context.Context) error {
	if err := d.call(ctx, "scroll_up", func(ctx context.Context) error {
		return d.feed.ScrollUp(ctx, d.cfg.ScrollAmount)
	}); err != nil {
		return err
	}

	_, scanErr := d.Scan(ctx)

	if err := d.call(ctx, "scroll_to_bottom", d.feed.ScrollToBottom); err != nil {
		return err
	}
	return scanErr
}

// ScanResult counts outcomes of one scan cycle.
type ScanResult struct {
	Scanned int
	Counts  map[Outcome]int
}

// Scan evaluates every message in the visible window once.
// A capture failure returns an error wrapping domain.ErrTransientIO.
func (d *Detector) Scan(ctx context.Context) (ScanResult, error) {
	start := time.Now()
	result := ScanResult{Counts: make(map[Outcome]int)}

	msgs, err := d.capture(ctx)
	if err != nil {
		return result, err
	}

	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		outcome := d.Evaluate(ctx, msg)
		result.Scanned++
		result.Counts[outcome]++
	}

	d.metrics.RecordScan(time.Since(start).Seconds(), len(d.seen), len(d.pending), time.Now().Unix())
	return result, nil
}

// Evaluate runs one message through the state machine.
func (d *Detector) Evaluate(ctx context.Context, msg domain.RawMessage) Outcome {
	d.metrics.RecordMessageScanned()

	if msg.ID == "" {
		return d.record(OutcomeDiscarded)
	}
	if d.IsSeen(msg.ID) {
		return d.record(OutcomeDuplicate)
	}

	// candidate
	trader, score, ok := traders.Match(d.allow(), msg.Author)
	if !ok {
		d.markSeen(ctx, msg.ID, "not_trader")
		return d.record(OutcomeDiscarded)
	}

	if d.IsLocked(msg.Text) {
		return d.record(d.reveal(ctx, msg, trader, score))
	}
	return d.record(d.evaluateUnlocked(ctx, msg, trader, score, false))
}

// IsLocked reports whether text shows a hidden-content phrase and none of the
// already-revealed markers.
func (d *Detector) IsLocked(text string) bool {
	lower := strings.ToLower(text)
	if !containsAny(lower, d.cfg.HiddenPhrases) {
		return false
	}
	return !containsAny(lower, d.cfg.RevealedMarkers)
}

// IsSeen reports whether id reached a terminal state.
func (d *Detector) IsSeen(id string) bool {
	_, ok := d.seen[id]
	return ok
}

// PendingAttempts returns failed reveal attempts for a locked message.
func (d *Detector) PendingAttempts(id string) int {
	return d.pending[id]
}

func (d *Detector) evaluateUnlocked(ctx context.Context, msg domain.RawMessage, trader domain.Trader, score float64, revealed bool) Outcome {
	if !d.parser.IsCandidate(msg.Text) {
		d.markSeen(ctx, msg.ID, "not_candidate")
		return OutcomeDiscarded
	}

	parsed, ok := d.parser.Parse(msg.Text)
	if !ok {
		d.logger.Printf("Discarding message %s: %v", msg.ID, domain.ErrParseRejected)
		d.markSeen(ctx, msg.ID, "parse_rejected")
		return OutcomeDiscarded
	}

	det := Detection{Message: msg, Parsed: *parsed, Trader: trader, Score: score, Revealed: revealed}
	if err := d.sink.Ingest(ctx, det); err != nil {
		if errors.Is(err, domain.ErrDuplicateSignal) {
			d.markSeen(ctx, msg.ID, "duplicate")
			return OutcomeDuplicate
		}
		d.logger.Printf("Sink rejected message %s, will retry: %v", msg.ID, err)
		return OutcomeRetry
	}

	d.markSeen(ctx, msg.ID, string(OutcomeIngested))
	return OutcomeIngested
}

// reveal clicks the reveal control of a locked message and evaluates the
// revealed text. Any failure leaves the message pending.
func (d *Detector) reveal(ctx context.Context, msg domain.RawMessage, trader domain.Trader, score float64) Outcome {
	if d.frames == nil || d.clicker == nil || d.locator == nil {
		return d.gatedFail(msg.ID, "no reveal capability")
	}

	var frame image.Image
	if err := d.call(ctx, "capture_frame", func(ctx context.Context) error {
		var err error
		frame, err = d.frames.CaptureFrame(ctx)
		return err
	}); err != nil {
		return d.gatedFail(msg.ID, err.Error())
	}

	search := clip(frame, msg)

	var (
		res   locator.Result
		found bool
	)
	err := d.call(ctx, "locate", func(ctx context.Context) error {
		var err error
		res, found, err = d.locator.Locate(ctx, search, d.cfg.ControlWidth, d.cfg.ControlHeight, d.cfg.LocateOptions)
		return err
	})
	if err != nil {
		return d.gatedFail(msg.ID, err.Error())
	}
	if !found {
		return d.gatedFail(msg.ID, "reveal control not found")
	}
	d.metrics.RecordLocatorHit(string(res.Strategy))

	center := res.Center()
	if err := d.call(ctx, "click", func(ctx context.Context) error {
		return d.clicker.ClickAt(ctx, center.X, center.Y)
	}); err != nil {
		return d.gatedFail(msg.ID, err.Error())
	}

	if err := d.sleep(ctx, d.cfg.SettleDelay); err != nil {
		return d.gatedFail(msg.ID, err.Error())
	}
	if err := d.call(ctx, "scroll_to_bottom", d.feed.ScrollToBottom); err != nil {
		return d.gatedFail(msg.ID, err.Error())
	}

	msgs, err := d.capture(ctx)
	if err != nil {
		return d.gatedFail(msg.ID, err.Error())
	}

	revealed, ok := d.pickRevealed(msg, trader, msgs)
	if !ok {
		d.metrics.RecordReveal("not_found")
		return d.gatedFail(msg.ID, "revealed message not visible")
	}
	d.metrics.RecordReveal("revealed")

	delete(d.pending, msg.ID)
	if revealed.ID != msg.ID {
		d.markSeen(ctx, msg.ID, "revealed")
	}
	d.metrics.RecordMessageScanned()
	return d.evaluateUnlocked(ctx, revealed, trader, score, true)
}

// pickRevealed returns the revealed message: the same id if it is now
// unlocked, otherwise the bottom-most unseen unlocked message posted by the
// locked message's trader. Messages from any other author are never taken.
func (d *Detector) pickRevealed(locked domain.RawMessage, trader domain.Trader, msgs []domain.RawMessage) (domain.RawMessage, bool) {
	for _, m := range msgs {
		if m.ID == locked.ID && !d.IsLocked(m.Text) {
			return m, true
		}
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.ID == "" || m.ID == locked.ID || d.IsSeen(m.ID) || d.IsLocked(m.Text) {
			continue
		}
		if !d.sameTrader(locked, trader, m.Author) {
			continue
		}
		return m, true
	}
	return domain.RawMessage{}, false
}

// sameTrader reports whether author is the trader who posted locked. App
// replies render the handle with a suffix ("Tareeq APP"), so a normalized
// containment match against the trader handle is accepted too.
func (d *Detector) sameTrader(locked domain.RawMessage, trader domain.Trader, author string) bool {
	if author == "" {
		return false
	}
	if author == locked.Author {
		return true
	}
	threshold := d.allow().Threshold
	if threshold <= 0 {
		threshold = traders.DefaultThreshold
	}
	return fuzzy.Matches(author, trader.Handle, threshold)
}

func (d *Detector) gatedFail(id, reason string) Outcome {
	d.pending[id]++
	attempts := d.pending[id]
	d.logger.Printf("Locked message %s pending (attempt %d): %s", id, attempts, reason)

	if d.cfg.MaxLockedAttempts > 0 && attempts >= d.cfg.MaxLockedAttempts {
		delete(d.pending, id)
		d.markSeen(context.Background(), id, "locked_exhausted")
		return OutcomeDiscarded
	}
	return OutcomeGatedFail
}

func (d *Detector) capture(ctx context.Context) ([]domain.RawMessage, error) {
	var msgs []domain.RawMessage
	err := d.call(ctx, "capture", func(ctx context.Context) error {
		var err error
		msgs, err = d.feed.CaptureVisibleMessages(ctx)
		return err
	})
	return msgs, err
}

// call runs fn under CallTimeout. Failures are reported as transient.
func (d *Detector) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, d.cfg.CallTimeout)
	defer cancel()

	if err := fn(callCtx); err != nil {
		d.metrics.RecordFeedError(op)
		return fmt.Errorf("%s: %w: %w", op, domain.ErrTransientIO, err)
	}
	return nil
}

func (d *Detector) markSeen(ctx context.Context, id, outcome string) {
	d.seen[id] = struct{}{}
	if d.seenDB == nil {
		return
	}
	if err := d.seenDB.MarkSeen(context.WithoutCancel(ctx), d.cfg.ChannelID, id, outcome); err != nil {
		d.logger.Printf("Error persisting seen message %s: %v", id, err)
	}
}

func (d *Detector) record(o Outcome) Outcome {
	d.metrics.RecordGateOutcome(string(o))
	return o
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// clip restricts the search to the message region when the feed reports one.
func clip(frame image.Image, msg domain.RawMessage) image.Image {
	if !msg.HasRegion() {
		return frame
	}
	r := msg.Region.Intersect(frame.Bounds())
	if r.Empty() {
		return frame
	}
	if si, ok := frame.(subImager); ok {
		return si.SubImage(r)
	}
	return frame
}

func containsAny(s string, fragments []string) bool {
	for _, f := range fragments {
		if f != "" && strings.Contains(s, strings.ToLower(f)) {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
