package parser

import (
	"testing"
)

func TestParser_IsCandidate(t *testing.T) {
	p := New()

	tests := []struct {
		name string
		text string
		want bool
	}{
		{name: "full signal", text: "Longed BTC at 67500 sl- 65200 (1% risk) TPs: 70000", want: true},
		{name: "missing target", text: "Longed BTC at 67500 sl- 65200", want: true},
		{name: "missing direction", text: "BTC Entry: 67500 SL: 65200 TP: 70000", want: true},
		{name: "only two patterns", text: "Longed BTC at 67500, will update", want: false},
		{name: "chatter", text: "gm everyone, market looks choppy today", want: false},
		{name: "locked placeholder", text: "Only you can see this • Unlock Content", want: false},
		{name: "ocr misreads", text: "lang SOL entty: 142.5 sl; 138 tp; 150", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.IsCandidate(tt.text); got != tt.want {
				t.Errorf("IsCandidate(%q) = %v, want %v (matches=%+v)", tt.text, got, tt.want, p.Match(tt.text))
			}
		})
	}
}

func TestParser_Parse(t *testing.T) {
	p := New()

	tests := []struct {
		name       string
		text       string
		wantOK     bool
		ticker     string
		isLong     bool
		entry      float64
		stop       float64
		target     float64
		risk       float64
		numTargets int
	}{
		{
			name:   "long with risk clause",
			text:   "Longed BTC at 67500 sl- 65200 (1% risk) TPs: 70000",
			wantOK: true, ticker: "BTC", isLong: true, entry: 67500, stop: 65200, target: 70000, risk: 1, numTargets: 1,
		},
		{
			name:   "short defaults risk",
			text:   "Shorted ETH at 3520 sl- 3650 TPs: 3300",
			wantOK: true, ticker: "ETH", isLong: false, entry: 3520, stop: 3650, target: 3300, risk: 1, numTargets: 1,
		},
		{
			name:   "entry colon format with ticker before direction",
			text:   "SOL long Entry: 142.5 SL: 138 TP: 150",
			wantOK: true, ticker: "SOL", isLong: true, entry: 142.5, stop: 138, target: 150, risk: 1, numTargets: 1,
		},
		{
			name:   "explicit risk and multiple targets",
			text:   "Longed $DOGE at 0.1234 sl- 0.118 (0.5% risk) TPs: 0.13, 0.14 / 0.15",
			wantOK: true, ticker: "DOGE", isLong: true, entry: 0.1234, stop: 0.118, target: 0.13, risk: 0.5, numTargets: 3,
		},
		{
			name:   "thousands separators",
			text:   "Shorted BTC/USDT at 67,500 sl- 68,900 TPs: 64,000",
			wantOK: true, ticker: "BTC", isLong: false, entry: 67500, stop: 68900, target: 64000, risk: 1, numTargets: 1,
		},
		{
			name:   "comma-joined target list without spaces",
			text:   "Longed SOL at 650 sl- 600 TPs: 700,720",
			wantOK: true, ticker: "SOL", isLong: true, entry: 650, stop: 600, target: 700, risk: 1, numTargets: 2,
		},
		{
			name:   "comma-joined followers after first target",
			text:   "Longed SOL at 650 sl- 600 TPs: 700 / 720,760",
			wantOK: true, ticker: "SOL", isLong: true, entry: 650, stop: 600, target: 700, risk: 1, numTargets: 3,
		},
		{
			name:   "grouped target in scale with entry",
			text:   "Longed BTC at 67,500 sl- 65,200 TPs: 70,000, 72,500",
			wantOK: true, ticker: "BTC", isLong: true, entry: 67500, stop: 65200, target: 70000, risk: 1, numTargets: 2,
		},
		{
			name:   "no direction keyword defaults to short",
			text:   "AVAX Entry: 35.2 SL: 33 TP: 40",
			wantOK: true, ticker: "AVAX", isLong: false, entry: 35.2, stop: 33, target: 40, risk: 1, numTargets: 1,
		},
		{
			name:   "missing stop loss",
			text:   "Longed BTC at 67500 TPs: 70000",
			wantOK: false,
		},
		{
			name:   "missing ticker",
			text:   "Longed at 67500 sl- 65200 TPs: 70000",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.Parse(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("Parse(%q) ok = %v, want %v (got %+v)", tt.text, ok, tt.wantOK, got)
			}
			if !ok {
				if got != nil {
					t.Errorf("Parse() returned signal on failure: %+v", got)
				}
				return
			}
			if got.Ticker != tt.ticker {
				t.Errorf("Ticker = %q, want %q", got.Ticker, tt.ticker)
			}
			if got.IsLong != tt.isLong {
				t.Errorf("IsLong = %v, want %v", got.IsLong, tt.isLong)
			}
			if got.EntryPrice != tt.entry {
				t.Errorf("EntryPrice = %v, want %v", got.EntryPrice, tt.entry)
			}
			if got.StopLossPrice != tt.stop {
				t.Errorf("StopLossPrice = %v, want %v", got.StopLossPrice, tt.stop)
			}
			if got.TargetPrice != tt.target {
				t.Errorf("TargetPrice = %v, want %v", got.TargetPrice, tt.target)
			}
			if got.RiskPercent != tt.risk {
				t.Errorf("RiskPercent = %v, want %v", got.RiskPercent, tt.risk)
			}
			if len(got.Targets) != tt.numTargets {
				t.Errorf("len(Targets) = %d, want %d (%v)", len(got.Targets), tt.numTargets, got.Targets)
			}
			if got.Targets[0] != got.TargetPrice {
				t.Errorf("Targets[0] = %v, want TargetPrice %v", got.Targets[0], got.TargetPrice)
			}
		})
	}
}

func TestTargetValues(t *testing.T) {
	tests := []struct {
		raw   string
		entry float64
		want  []float64
	}{
		{"700,720", 650, []float64{700, 720}},
		{"70,000", 67500, []float64{70000}},
		{"1,000", 900, []float64{1000}},
		{"1,000", 0.5, []float64{1000}},
		{"0", 100, nil},
	}
	for _, tt := range tests {
		got := targetValues(tt.raw, tt.entry)
		if len(got) != len(tt.want) {
			t.Errorf("targetValues(%q, %v) = %v, want %v", tt.raw, tt.entry, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("targetValues(%q, %v) = %v, want %v", tt.raw, tt.entry, got, tt.want)
			}
		}
	}
}

func TestParser_Leverage(t *testing.T) {
	p := New()

	tests := []struct {
		name string
		text string
		want float64 // 0 = absent
	}{
		{name: "x suffix", text: "Longed BTC at 67500 sl- 65200 TPs: 70000 10x", want: 10},
		{name: "keyword", text: "Shorted ETH at 3520 sl- 3650 TPs: 3300 leverage: 20", want: 20},
		{name: "absent", text: "Longed BTC at 67500 sl- 65200 TPs: 70000", want: 0},
		{name: "out of range", text: "Longed BTC at 67500 sl- 65200 TPs: 70000 500x", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.Parse(tt.text)
			if !ok {
				t.Fatalf("Parse(%q) failed", tt.text)
			}
			if tt.want == 0 {
				if got.Leverage != nil {
					t.Errorf("Leverage = %v, want nil", *got.Leverage)
				}
				return
			}
			if got.Leverage == nil || *got.Leverage != tt.want {
				t.Errorf("Leverage = %v, want %v", got.Leverage, tt.want)
			}
		})
	}
}

func TestParser_Normalize(t *testing.T) {
	p := New()

	tests := []struct {
		in   string
		want string
	}{
		{in: "  Longed   BTC\n at 67500 ", want: "Longed BTC at 67500"},
		{in: "entty: 100 sl; 90 tps; 120", want: "entry: 100 sl: 90 tps: 120"},
		{in: "shart ETH", want: "short ETH"},
		{in: "lang SOL", want: "long SOL"},
		{in: "language model", want: "language model"},
	}

	for _, tt := range tests {
		if got := p.Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParser_StatusAndPostedTime(t *testing.T) {
	p := New()

	tests := []struct {
		name       string
		text       string
		status     string
		postedTime string
	}{
		{
			name:       "card with status and header time",
			text:       "Tareeq Today at 3:45 PM Longed BTC at 67500 sl- 65200 TPs: 70000 Status: Valid limit order • 2 replies",
			status:     "Valid limit order",
			postedTime: "3:45 PM",
		},
		{
			name:       "yesterday header, status at end",
			text:       "Yesterday at 11:02 AM Shorted ETH at 3520 sl- 3650 TPs: 3300 status order filled",
			status:     "order filled",
			postedTime: "11:02 AM",
		},
		{
			name: "neither present",
			text: "Longed BTC at 67500 sl- 65200 TPs: 70000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.Parse(tt.text)
			if !ok {
				t.Fatalf("Parse(%q) failed", tt.text)
			}
			if got.Status != tt.status {
				t.Errorf("Status = %q, want %q", got.Status, tt.status)
			}
			if got.PostedTime != tt.postedTime {
				t.Errorf("PostedTime = %q, want %q", got.PostedTime, tt.postedTime)
			}
		})
	}
}

func TestParser_PostedHeaderIsNotEntry(t *testing.T) {
	p := New()

	if p.IsCandidate("Tareeq Today at 3:45 PM thinking long BTC, sl 65200 if it triggers") {
		t.Error("header time counted as an entry price")
	}

	got, ok := p.Parse("Tareeq Today at 3:45 PM Longed BTC at 67500 sl- 65200 TPs: 70000")
	if !ok {
		t.Fatal("Parse failed")
	}
	if got.EntryPrice != 67500 {
		t.Errorf("EntryPrice = %v, want 67500", got.EntryPrice)
	}
}
