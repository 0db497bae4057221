// Package reclaim schedules the deferred cancellation of abandoned orders.
//
// Pending reclamations live in a min-heap keyed by order id and are served by a
// single timer goroutine; due entries are handed to a fixed pool of workers so a
// slow or failing action never delays the others. Entries can be enumerated with
// Pending and, when a Journal is configured, survive a restart via Restore.
package reclaim

import (
	"container/heap"
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultDelay   = 30 * time.Minute
	DefaultWorkers = 4

	actionTimeout  = 10 * time.Second
	journalTimeout = 2 * time.Second
)

// Action is run once per due entry.
type Action func(ctx context.Context, orderID string) error

type Entry struct {
	OrderID string    `json:"order_id"`
	DueAt   time.Time `json:"due_at"`
}

// Journal persists pending entries outside the process.
type Journal interface {
	Add(ctx context.Context, e Entry) error
	Remove(ctx context.Context, orderID string) error
	Load(ctx context.Context) ([]Entry, error)
}

type Option func(*Scheduler)

func WithDelay(d time.Duration) Option { return func(s *Scheduler) { s.delay = d } }

func WithWorkers(n int) Option { return func(s *Scheduler) { s.workers = n } }

func WithJournal(j Journal) Option { return func(s *Scheduler) { s.journal = j } }

func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

type Scheduler struct {
	delay   time.Duration
	workers int
	journal Journal
	logger  *zap.Logger
	now     func() time.Time

	mu    sync.Mutex
	queue entryHeap
	index map[string]*item
	wake  chan struct{}
}

func NewScheduler(logger *zap.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		delay:   DefaultDelay,
		workers: DefaultWorkers,
		logger:  logger,
		now:     time.Now,
		index:   map[string]*item{},
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers <= 0 {
		s.workers = 1
	}
	return s
}

// Schedule arms a reclamation for orderID after the configured delay. Scheduling an
// id that is already pending moves its due time.
func (s *Scheduler) Schedule(orderID string) error {
	e := Entry{OrderID: orderID, DueAt: s.now().Add(s.delay).UTC()}
	s.push(e)

	if s.journal == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	return s.journal.Add(ctx, e)
}

// Restore loads journaled entries into the queue. Entries already due fire as soon as Run starts.
func (s *Scheduler) Restore(ctx context.Context) (int, error) {
	if s.journal == nil {
		return 0, nil
	}
	entries, err := s.journal.Load(ctx)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		s.push(e)
	}
	return len(entries), nil
}

// Pending returns a snapshot of the queued entries ordered by due time.
func (s *Scheduler) Pending() []Entry {
	s.mu.Lock()
	out := make([]Entry, 0, len(s.queue))
	for _, it := range s.queue {
		out = append(out, it.Entry)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Run serves due entries until ctx is cancelled, then waits for in-flight actions.
// Entries still queued at shutdown, and entries whose action failed, stay in the journal.
func (s *Scheduler) Run(ctx context.Context, action Action) {
	jobs := make(chan Entry)
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range jobs {
				s.fire(ctx, action, e)
			}
		}()
	}
	defer func() {
		close(jobs)
		wg.Wait()
	}()

	s.logger.Info("reclaim scheduler started",
		zap.Duration("delay", s.delay), zap.Int("workers", s.workers), zap.Int("pending", s.Len()))

	for {
		wait, ok := s.nextWait()
		var timerC <-chan time.Time
		var timer *time.Timer
		if ok {
			timer = time.NewTimer(wait)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			s.logger.Info("reclaim scheduler stopping", zap.Int("pending", s.Len()))
			return
		case <-s.wake:
			if timer != nil {
				timer.Stop()
			}
		case <-timerC:
			for _, e := range s.popDue() {
				select {
				case jobs <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, action Action, e Entry) {
	// action tetap selesai walau ctx Run sudah cancel
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), actionTimeout)
	defer cancel()

	if err := action(actx, e.OrderID); err != nil {
		// entry tetap di journal, Restore berikutnya akan mencoba lagi
		s.logger.Error("reclamation failed", zap.String("order_id", e.OrderID), zap.Error(err))
		return
	}
	if s.journal != nil {
		if err := s.journal.Remove(actx, e.OrderID); err != nil {
			s.logger.Warn("failed to remove reclamation from journal",
				zap.String("order_id", e.OrderID), zap.Error(err))
		}
	}
}

func (s *Scheduler) push(e Entry) {
	s.mu.Lock()
	if it, ok := s.index[e.OrderID]; ok {
		it.DueAt = e.DueAt
		heap.Fix(&s.queue, it.pos)
	} else {
		it := &item{Entry: e}
		heap.Push(&s.queue, it)
		s.index[e.OrderID] = it
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) nextWait() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return 0, false
	}
	wait := s.queue[0].DueAt.Sub(s.now())
	if wait < 0 {
		wait = 0
	}
	return wait, true
}

func (s *Scheduler) popDue() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var due []Entry
	for len(s.queue) > 0 && !s.queue[0].DueAt.After(now) {
		it := heap.Pop(&s.queue).(*item)
		delete(s.index, it.OrderID)
		due = append(due, it.Entry)
	}
	return due
}

type item struct {
	Entry
	pos int
}

type entryHeap []*item

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].DueAt.Before(h[j].DueAt) }
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].pos = i
	h[j].pos = j
}

func (h *entryHeap) Push(x any) {
	it := x.(*item)
	it.pos = len(*h)
	*h = append(*h, it)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}
