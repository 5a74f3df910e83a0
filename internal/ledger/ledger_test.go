package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/folkertvanheusden/GHBot-BTC/internal/model"
)

func openLedgers(t *testing.T) map[string]Ledger {
	t.Helper()
	sl, err := NewSQLiteLedger(filepath.Join(t.TempDir(), "prices.db"))
	if err != nil {
		t.Fatalf("open sqlite ledger: %v", err)
	}
	t.Cleanup(func() { sl.Close() })
	return map[string]Ledger{
		"sqlite": sl,
		"memory": NewMemoryLedger(),
	}
}

var base = time.Date(2025, 11, 18, 12, 0, 0, 0, time.UTC)

func TestLedger_AppendRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	for name, l := range openLedgers(t) {
		if err := l.Append(ctx, model.PriceSample{Time: base, Price: 100}); err != nil {
			t.Fatalf("%s: first append: %v", name, err)
		}
		err := l.Append(ctx, model.PriceSample{Time: base, Price: 200})
		if !errors.Is(err, ErrDuplicate) {
			t.Errorf("%s: expected ErrDuplicate, got %v", name, err)
		}
		rows, err := l.Range(ctx, base, base.Add(time.Second))
		if err != nil {
			t.Fatalf("%s: range: %v", name, err)
		}
		if len(rows) != 1 || rows[0].Price != 100 {
			t.Errorf("%s: expected the first row only, got %+v", name, rows)
		}
	}
}

func TestLedger_QueriesAscending(t *testing.T) {
	ctx := context.Background()
	for name, l := range openLedgers(t) {
		// Insert out of order; reads must come back sorted.
		for _, off := range []int{5, 1, 3, 2, 4} {
			s := model.PriceSample{Time: base.Add(time.Duration(off) * time.Minute), Price: float64(off)}
			if err := l.Append(ctx, s); err != nil {
				t.Fatalf("%s: append: %v", name, err)
			}
		}

		rows, err := l.Range(ctx, base.Add(2*time.Minute), base.Add(5*time.Minute))
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) != 3 || rows[0].Price != 2 || rows[2].Price != 4 {
			t.Errorf("%s: half-open range wrong: %+v", name, rows)
		}

		latest, err := l.Latest(ctx)
		if err != nil || latest.Price != 5 {
			t.Errorf("%s: latest = %+v, %v", name, latest, err)
		}

		before, err := l.LatestBefore(ctx, base.Add(3*time.Minute))
		if err != nil || before.Price != 2 {
			t.Errorf("%s: latest before = %+v, %v", name, before, err)
		}
		if _, err := l.LatestBefore(ctx, base); !errors.Is(err, ErrNoData) {
			t.Errorf("%s: expected ErrNoData before first sample, got %v", name, err)
		}

		recent, err := l.Recent(ctx, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(recent) != 2 || recent[0].Price != 4 || recent[1].Price != 5 {
			t.Errorf("%s: recent = %+v", name, recent)
		}
	}
}

func TestLedger_Summary(t *testing.T) {
	ctx := context.Background()
	for name, l := range openLedgers(t) {
		for i, p := range []float64{10, 40, 20, 30} {
			if err := l.Append(ctx, model.PriceSample{Time: base.Add(time.Duration(i) * time.Second), Price: p}); err != nil {
				t.Fatal(err)
			}
		}
		sum, err := l.Summary(ctx, base, base.Add(time.Hour))
		if err != nil {
			t.Fatalf("%s: summary: %v", name, err)
		}
		if sum.Min != 10 || sum.Max != 40 || sum.Avg != 25 || sum.Count != 4 {
			t.Errorf("%s: summary = %+v", name, sum)
		}
		if len(sum.Prices) != 4 || sum.Prices[1] != 40 {
			t.Errorf("%s: prices not in time order: %v", name, sum.Prices)
		}
		if !sum.FirstTime.Equal(base) {
			t.Errorf("%s: first time = %v", name, sum.FirstTime)
		}

		if _, err := l.Summary(ctx, base.Add(-time.Hour), base); !errors.Is(err, ErrNoData) {
			t.Errorf("%s: expected ErrNoData for empty window, got %v", name, err)
		}
	}
}

func TestLedger_EmptyLatest(t *testing.T) {
	ctx := context.Background()
	for name, l := range openLedgers(t) {
		if _, err := l.Latest(ctx); !errors.Is(err, ErrNoData) {
			t.Errorf("%s: expected ErrNoData, got %v", name, err)
		}
	}
}

func TestSQLiteLedger_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.db")
	ctx := context.Background()

	l, err := NewSQLiteLedger(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Append(ctx, model.PriceSample{Time: base, Price: 1}); err != nil {
		t.Fatal(err)
	}
	l.Close()

	l, err = NewSQLiteLedger(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l.Close()
	latest, err := l.Latest(ctx)
	if err != nil || latest.Price != 1 || !latest.Time.Equal(base) {
		t.Errorf("after reopen latest = %+v, %v", latest, err)
	}
}

func TestLedger_FractionalSecondBounds(t *testing.T) {
	ctx := context.Background()
	half := 500 * time.Millisecond
	for name, l := range openLedgers(t) {
		for _, s := range []model.PriceSample{{Time: base, Price: 100}, {Time: base.Add(10 * time.Second), Price: 50}} {
			if err := l.Append(ctx, s); err != nil {
				t.Fatalf("%s: append: %v", name, err)
			}
		}

		ranges := []struct {
			from, to time.Time
			want     int
		}{
			{base, base.Add(10 * time.Second), 1},
			{base.Add(half), base.Add(10*time.Second + half), 1},
			{base.Add(-half), base.Add(10*time.Second + half), 2},
			{base.Add(-half), base.Add(half), 1},
		}
		for _, r := range ranges {
			rows, err := l.Range(ctx, r.from, r.to)
			if err != nil {
				t.Fatalf("%s: range: %v", name, err)
			}
			if len(rows) != r.want {
				t.Errorf("%s: Range(%v, %v) = %d rows, want %d", name, r.from, r.to, len(rows), r.want)
			}
		}

		sum, err := l.Summary(ctx, base.Add(half), base.Add(10*time.Second+half))
		if err != nil {
			t.Fatalf("%s: summary: %v", name, err)
		}
		if sum.Count != 1 || sum.Min != 50 {
			t.Errorf("%s: summary = %+v, want only the tick at +10s", name, sum)
		}

		got, err := l.LatestBefore(ctx, base.Add(10*time.Second+half))
		if err != nil || got.Price != 50 {
			t.Errorf("%s: LatestBefore(+10.5s) = %+v, %v", name, got, err)
		}
		got, err = l.LatestBefore(ctx, base.Add(10*time.Second))
		if err != nil || got.Price != 100 {
			t.Errorf("%s: LatestBefore(+10s) = %+v, %v", name, got, err)
		}
	}
}
