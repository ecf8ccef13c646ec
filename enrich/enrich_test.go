package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/chasse/board"
	"github.com/hazyhaar/chasse/fetch"
)

func testQueue(t *testing.T, cfg Config) *Queue {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	q, err := NewQueue(cfg)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	return q
}

func item(n int) board.Item {
	return board.Item{
		Title:      fmt.Sprintf("Engineer %d", n),
		Company:    "Acme",
		Source:     "indeed",
		NaturalKey: fmt.Sprintf("indeed|jk%d", n),
		Link:       fmt.Sprintf("https://www.indeed.com/viewjob?jk=jk%d", n),
	}
}

func drain(ch <-chan Outcome) []Outcome {
	var out []Outcome
	for o := range ch {
		out = append(out, o)
	}
	return out
}

func TestRejectsZeroConcurrency(t *testing.T) {
	// WHAT: Concurrency <= 0 is a configuration error at construction.
	if _, err := NewQueue(Config{Concurrency: 0}); err == nil {
		t.Fatal("expected error for concurrency 0")
	}
	if _, err := NewQueue(Config{Concurrency: -1}); err == nil {
		t.Fatal("expected error for negative concurrency")
	}
}

func TestOneOutcomePerItem(t *testing.T) {
	// WHAT: Every enqueued item yields exactly one outcome, mixed results
	// included.
	// WHY: The metrics invariant enriched+failed+skipped == queued depends
	// on it.
	q := testQueue(t, Config{Concurrency: 3})
	for i := 0; i < 20; i++ {
		q.Enqueue(item(i))
	}

	ch, err := q.Run(context.Background(), func(ctx context.Context, it board.Item) (*board.Detail, error) {
		if it.NaturalKey == "indeed|jk7" {
			return nil, &fetch.Error{Kind: fetch.KindTerminal, Op: "get", Err: errors.New("gone")}
		}
		return &board.Detail{Description: "ok"}, nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	outcomes := drain(ch)
	if len(outcomes) != 20 {
		t.Fatalf("outcomes: got %d, want 20", len(outcomes))
	}
	var enriched, failed int
	for _, o := range outcomes {
		switch o.Status {
		case board.StatusEnriched:
			enriched++
		case board.StatusFailed:
			failed++
		default:
			t.Fatalf("unexpected status %q", o.Status)
		}
	}
	if enriched != 19 || failed != 1 {
		t.Fatalf("enriched=%d failed=%d", enriched, failed)
	}
}

func TestConcurrencyBound(t *testing.T) {
	// WHAT: At no point are more than Concurrency fetches in flight.
	const bound = 3
	q := testQueue(t, Config{Concurrency: bound})
	for i := 0; i < 30; i++ {
		q.Enqueue(item(i))
	}

	var inflight, peak int64
	ch, err := q.Run(context.Background(), func(ctx context.Context, it board.Item) (*board.Detail, error) {
		cur := atomic.AddInt64(&inflight, 1)
		for {
			old := atomic.LoadInt64(&peak)
			if cur <= old || atomic.CompareAndSwapInt64(&peak, old, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt64(&inflight, -1)
		return &board.Detail{}, nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	drain(ch)

	if got := atomic.LoadInt64(&peak); got > bound {
		t.Fatalf("peak in-flight %d exceeds bound %d", got, bound)
	}
}

func TestTransientRetriesUntilAttemptsExhaust(t *testing.T) {
	// WHAT: Transient failures are attempted exactly MaxAttempts times.
	q := testQueue(t, Config{
		Concurrency: 1,
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
	})
	q.Enqueue(item(1))

	var calls int32
	ch, err := q.Run(context.Background(), func(ctx context.Context, it board.Item) (*board.Detail, error) {
		atomic.AddInt32(&calls, 1)
		return nil, &fetch.Error{Kind: fetch.KindTransient, Op: "get", Err: errors.New("timeout")}
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	outcomes := drain(ch)
	if len(outcomes) != 1 {
		t.Fatalf("outcomes: got %d", len(outcomes))
	}
	if outcomes[0].Status != board.StatusFailed {
		t.Fatalf("status: got %q", outcomes[0].Status)
	}
	if outcomes[0].Attempts != 3 {
		t.Fatalf("attempts: got %d, want 3", outcomes[0].Attempts)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("calls: got %d, want 3", got)
	}
}

func TestTransientThenSuccess(t *testing.T) {
	// WHAT: An item that recovers mid-retry ends enriched with its attempt
	// count intact.
	q := testQueue(t, Config{
		Concurrency: 2,
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
	})
	q.Enqueue(item(1))

	var calls int32
	ch, err := q.Run(context.Background(), func(ctx context.Context, it board.Item) (*board.Detail, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return nil, &fetch.Error{Kind: fetch.KindChallenge, Op: "get", Err: errors.New("interstitial")}
		}
		return &board.Detail{Salary: "$100k"}, nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	outcomes := drain(ch)
	if outcomes[0].Status != board.StatusEnriched {
		t.Fatalf("status: got %q (err %v)", outcomes[0].Status, outcomes[0].Err)
	}
	if outcomes[0].Attempts != 3 {
		t.Fatalf("attempts: got %d, want 3", outcomes[0].Attempts)
	}
	if outcomes[0].Item.Salary != "$100k" {
		t.Fatalf("detail not merged: %+v", outcomes[0].Item)
	}
}

func TestTerminalFailsImmediately(t *testing.T) {
	// WHAT: Terminal failures consume no retry budget.
	q := testQueue(t, Config{Concurrency: 1, MaxAttempts: 5, BaseDelay: time.Millisecond})
	q.Enqueue(item(1))

	var calls int32
	ch, err := q.Run(context.Background(), func(ctx context.Context, it board.Item) (*board.Detail, error) {
		atomic.AddInt32(&calls, 1)
		return nil, &fetch.Error{Kind: fetch.KindTerminal, Op: "get", Err: errors.New("404")}
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	outcomes := drain(ch)
	if outcomes[0].Status != board.StatusFailed || outcomes[0].Attempts != 1 {
		t.Fatalf("outcome: %+v", outcomes[0])
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("calls: got %d, want 1", got)
	}
}

func TestZeroMaxAttemptsFetchesOnce(t *testing.T) {
	// WHAT: MaxAttempts 0 degrades to fetch-once with no retry.
	q := testQueue(t, Config{Concurrency: 1})
	q.Enqueue(item(1))

	var calls int32
	ch, err := q.Run(context.Background(), func(ctx context.Context, it board.Item) (*board.Detail, error) {
		atomic.AddInt32(&calls, 1)
		return nil, &fetch.Error{Kind: fetch.KindTransient, Op: "get", Err: errors.New("timeout")}
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	drain(ch)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("calls: got %d, want 1", got)
	}
}

func TestDuplicateKeyNeverConcurrent(t *testing.T) {
	// WHAT: Two queued items sharing a key are never fetched concurrently.
	q := testQueue(t, Config{Concurrency: 4})
	dup := item(1)
	q.Enqueue(dup)
	q.Enqueue(dup)

	var mu sync.Mutex
	active := map[string]int{}
	ch, err := q.Run(context.Background(), func(ctx context.Context, it board.Item) (*board.Detail, error) {
		key := board.Key(it)
		mu.Lock()
		active[key]++
		if active[key] > 1 {
			mu.Unlock()
			t.Errorf("key %q fetched concurrently", key)
			return nil, errors.New("overlap")
		}
		mu.Unlock()

		time.Sleep(2 * time.Millisecond)

		mu.Lock()
		active[key]--
		mu.Unlock()
		return &board.Detail{}, nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := len(drain(ch)); got != 2 {
		t.Fatalf("outcomes: got %d, want 2", got)
	}
}

func TestCancellationSkipsUndispatched(t *testing.T) {
	// WHAT: Cancelling the run resolves never-dispatched items as skipped
	// while keeping one outcome per item.
	q := testQueue(t, Config{Concurrency: 1})
	for i := 0; i < 10; i++ {
		q.Enqueue(item(i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	var once sync.Once
	ch, err := q.Run(ctx, func(ctx context.Context, it board.Item) (*board.Detail, error) {
		once.Do(func() { close(started) })
		time.Sleep(10 * time.Millisecond)
		return &board.Detail{}, nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	<-started
	cancel()

	outcomes := drain(ch)
	if len(outcomes) != 10 {
		t.Fatalf("outcomes: got %d, want 10", len(outcomes))
	}
	var skipped, enriched int
	for _, o := range outcomes {
		switch o.Status {
		case board.StatusSkipped:
			skipped++
		case board.StatusEnriched:
			enriched++
		}
	}
	if skipped == 0 {
		t.Fatal("expected skipped outcomes after cancellation")
	}
	if skipped+enriched != 10 {
		t.Fatalf("skipped=%d enriched=%d", skipped, enriched)
	}
}

func TestRunTwiceRejected(t *testing.T) {
	// WHAT: A queue drives one run only.
	q := testQueue(t, Config{Concurrency: 1})
	ch, err := q.Run(context.Background(), func(ctx context.Context, it board.Item) (*board.Detail, error) {
		return &board.Detail{}, nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	drain(ch)
	if _, err := q.Run(context.Background(), nil); err == nil {
		t.Fatal("second run should be rejected")
	}
}
