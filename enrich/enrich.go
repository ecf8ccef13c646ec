// Package enrich drains a queue of collected items through a detail-fetch
// capability under a fixed concurrency bound. Transient failures back off and
// retry; terminal failures burn no retry budget. Every item that enters the
// queue leaves it with exactly one outcome.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/chasse/board"
	"github.com/hazyhaar/chasse/fetch"
)

// FetchFunc retrieves detail for one item. Errors should carry a fetch.Kind;
// unclassified errors are treated as transient.
type FetchFunc func(ctx context.Context, item board.Item) (*board.Detail, error)

// Outcome is the terminal state of one queued item.
type Outcome struct {
	Item     board.Item
	Status   board.Status // enriched, failed or skipped
	Detail   *board.Detail
	Err      error
	Attempts int
}

// Config configures a Queue.
type Config struct {
	// Concurrency is the worker pool size. Must be positive.
	Concurrency int

	// MaxAttempts bounds attempts per item on transient failures.
	// Zero means fetch once with no retry.
	MaxAttempts int

	// BaseDelay seeds the backoff: base << attempts, capped at MaxDelay.
	// Defaults: 500ms base, 30s cap.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// ItemTimeout bounds a single fetch. In-flight fetches keep this
	// budget even after run cancellation. Default: 45s.
	ItemTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.ItemTimeout <= 0 {
		c.ItemTimeout = 45 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type task struct {
	item       board.Item
	key        string
	attempts   int
	eligibleAt time.Time
	inflight   bool
	done       bool
	lastErr    error
}

// Queue is a bounded-concurrency enrichment queue. Enqueue before Run; Run
// may be called once per Queue.
type Queue struct {
	cfg Config

	mu       sync.Mutex
	tasks    []*task
	inflight map[string]bool
	running  bool
}

// NewQueue creates a Queue. A non-positive concurrency is a configuration
// error, not a degenerate mode.
func NewQueue(cfg Config) (*Queue, error) {
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("enrich: concurrency must be positive, got %d", cfg.Concurrency)
	}
	cfg.defaults()
	return &Queue{cfg: cfg, inflight: make(map[string]bool)}, nil
}

// Enqueue adds an item to the work set.
func (q *Queue) Enqueue(item board.Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, &task{item: item, key: board.Key(item)})
}

// Len returns the number of items not yet resolved.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, t := range q.tasks {
		if !t.done {
			n++
		}
	}
	return n
}

// Run drains the queue. The returned channel yields exactly one Outcome per
// enqueued item and closes when all are resolved. Cancelling ctx stops
// dispatch; in-flight fetches finish under their own ItemTimeout and items
// never dispatched resolve as skipped.
func (q *Queue) Run(ctx context.Context, fetchDetail FetchFunc) (<-chan Outcome, error) {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return nil, errors.New("enrich: queue already running")
	}
	q.running = true
	out := make(chan Outcome, len(q.tasks))
	q.mu.Unlock()

	go func() {
		defer close(out)

		var g errgroup.Group
		for i := 0; i < q.cfg.Concurrency; i++ {
			g.Go(func() error {
				q.worker(ctx, fetchDetail, out)
				return nil
			})
		}
		g.Wait()

		// Anything still pending was never dispatched (cancellation).
		q.mu.Lock()
		for _, t := range q.tasks {
			if t.done {
				continue
			}
			t.done = true
			t.item.Status = board.StatusSkipped
			out <- Outcome{
				Item:     t.item,
				Status:   board.StatusSkipped,
				Err:      context.Cause(ctx),
				Attempts: t.attempts,
			}
		}
		q.mu.Unlock()
	}()

	return out, nil
}

func (q *Queue) worker(ctx context.Context, fetchDetail FetchFunc, out chan<- Outcome) {
	for {
		t, wait, more := q.claim()
		if !more {
			return
		}
		if t == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		if ctx.Err() != nil {
			q.release(t)
			return
		}

		detail, err := q.attempt(ctx, fetchDetail, t)
		q.resolve(t, detail, err, out)
	}
}

// attempt runs one fetch under the per-item timeout. The timeout context is
// derived from Background so an in-flight attempt finishes on its own budget
// even when the run is cancelled.
func (q *Queue) attempt(ctx context.Context, fetchDetail FetchFunc, t *task) (*board.Detail, error) {
	itemCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.cfg.ItemTimeout)
	defer cancel()
	return fetchDetail(itemCtx, t.item)
}

// claim picks an eligible task under the lock. Returns (nil, wait, true) when
// nothing is eligible yet and (nil, 0, false) when the queue is drained.
func (q *Queue) claim() (*task, time.Duration, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	pending := false
	wait := 50 * time.Millisecond

	for _, t := range q.tasks {
		if t.done || t.inflight {
			if t.inflight {
				pending = true
			}
			continue
		}
		pending = true
		if now.Before(t.eligibleAt) {
			if d := t.eligibleAt.Sub(now); d < wait {
				wait = d
			}
			continue
		}
		if q.inflight[t.key] {
			continue
		}
		t.inflight = true
		q.inflight[t.key] = true
		return t, 0, true
	}
	return nil, wait, pending
}

func (q *Queue) release(t *task) {
	q.mu.Lock()
	t.inflight = false
	delete(q.inflight, t.key)
	q.mu.Unlock()
}

// resolve applies the fetch result: success and terminal failures finish the
// task, transient failures requeue with backoff until attempts run out.
func (q *Queue) resolve(t *task, detail *board.Detail, err error, out chan<- Outcome) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t.inflight = false
	delete(q.inflight, t.key)
	t.attempts++

	if err == nil {
		t.done = true
		t.item.Status = board.StatusEnriched
		if detail != nil {
			t.item.ApplyDetail(detail)
		}
		out <- Outcome{Item: t.item, Status: board.StatusEnriched, Detail: detail, Attempts: t.attempts}
		return
	}

	t.lastErr = err
	kind := fetch.KindOf(err)

	if kind != fetch.KindTerminal && t.attempts < q.cfg.MaxAttempts {
		delay := q.backoff(t.attempts)
		t.eligibleAt = time.Now().Add(delay)
		q.cfg.Logger.Debug("enrich: retrying item",
			"key", t.key, "attempt", t.attempts, "kind", kind.String(), "delay", delay)
		return
	}

	t.done = true
	t.item.Status = board.StatusFailed
	out <- Outcome{Item: t.item, Status: board.StatusFailed, Err: err, Attempts: t.attempts}
}

func (q *Queue) backoff(attempts int) time.Duration {
	d := q.cfg.BaseDelay << uint(attempts)
	if d > q.cfg.MaxDelay || d <= 0 {
		d = q.cfg.MaxDelay
	}
	return d
}
