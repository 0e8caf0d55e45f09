package pipeline

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/caserag/ragengine/internal/classifier"
	"github.com/caserag/ragengine/internal/storage/models"
	"github.com/caserag/ragengine/pkg/logger"
)

// Scheduler dispatches embedding tasks to a worker pool after a
// per-size-category delay, releasing ready tasks in priority order so
// small documents become searchable fastest. Once scheduled, a task runs
// to terminal success or failure; there is no cancellation.
type Scheduler struct {
	runner *Runner
	pool   *ants.Pool

	delayFn func(models.SizeCategory) time.Duration

	mu      sync.Mutex
	waiting delayQueue
	ready   readyQueue
	seq     uint64

	wake chan struct{}
	stop chan struct{}
	done sync.WaitGroup
	wg   sync.WaitGroup
}

type Option func(*Scheduler)

// WithDelayFn overrides the schedule delay lookup; used in tests.
func WithDelayFn(fn func(models.SizeCategory) time.Duration) Option {
	return func(s *Scheduler) {
		s.delayFn = fn
	}
}

func NewScheduler(runner *Runner, workers int, opts ...Option) (*Scheduler, error) {
	if workers <= 0 {
		workers = 4
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		runner:  runner,
		pool:    pool,
		delayFn: classifier.ScheduleDelay,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.done.Add(1)
	go s.loop()

	return s, nil
}

// Schedule enqueues a task. The delay and priority both derive from the
// document's size category.
func (s *Scheduler) Schedule(task Task) {
	delay := s.delayFn(task.Category)
	priority := classifier.Priority(task.Category)

	s.mu.Lock()
	s.seq++
	heap.Push(&s.waiting, &scheduledTask{
		task:     task,
		readyAt:  time.Now().Add(delay),
		priority: priority,
		seq:      s.seq,
	})
	s.mu.Unlock()

	logger.Info("Embedding task scheduled",
		zap.String("document_id", task.DocumentID),
		zap.Int("chunks", len(task.ChunkIDs)),
		zap.Duration("delay", delay),
		zap.Int("priority", priority),
	)

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Close stops dispatching, waits for in-flight tasks, and releases the
// pool. Tasks still waiting on their delay are dropped.
func (s *Scheduler) Close() {
	close(s.stop)
	s.done.Wait()
	s.wg.Wait()
	s.pool.Release()
}

func (s *Scheduler) loop() {
	defer s.done.Done()

	for {
		next := s.dispatchReady()

		var timer <-chan time.Time
		if !next.IsZero() {
			timer = time.After(time.Until(next))
		}

		select {
		case <-s.stop:
			return
		case <-s.wake:
		case <-timer:
		}
	}
}

// dispatchReady submits every due task, highest priority first, and
// returns when the next waiting task becomes due (zero if none).
func (s *Scheduler) dispatchReady() time.Time {
	s.mu.Lock()
	now := time.Now()
	for s.waiting.Len() > 0 && !s.waiting[0].readyAt.After(now) {
		heap.Push(&s.ready, heap.Pop(&s.waiting).(*scheduledTask))
	}

	var due []*scheduledTask
	for s.ready.Len() > 0 {
		due = append(due, heap.Pop(&s.ready).(*scheduledTask))
	}

	var next time.Time
	if s.waiting.Len() > 0 {
		next = s.waiting[0].readyAt
	}
	s.mu.Unlock()

	for _, st := range due {
		s.submit(st.task)
	}
	return next
}

func (s *Scheduler) submit(task Task) {
	s.wg.Add(1)
	err := s.pool.Submit(func() {
		defer s.wg.Done()
		// Not tied to any request context; tasks outlive the upload call.
		if _, err := s.runner.Run(context.Background(), task); err != nil {
			logger.Error("Embedding task run failed",
				zap.String("document_id", task.DocumentID),
				zap.Error(err),
			)
		}
	})
	if err != nil {
		s.wg.Done()
		logger.Error("Failed to submit embedding task",
			zap.String("document_id", task.DocumentID),
			zap.Error(err),
		)
	}
}

type scheduledTask struct {
	task     Task
	readyAt  time.Time
	priority int
	seq      uint64
}

// delayQueue orders by readiness time.
type delayQueue []*scheduledTask

func (q delayQueue) Len() int            { return len(q) }
func (q delayQueue) Less(i, j int) bool  { return q[i].readyAt.Before(q[j].readyAt) }
func (q delayQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *delayQueue) Push(x any)         { *q = append(*q, x.(*scheduledTask)) }
func (q *delayQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// readyQueue orders due tasks by priority, then arrival.
type readyQueue []*scheduledTask

func (q readyQueue) Len() int { return len(q) }
func (q readyQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].seq < q[j].seq
}
func (q readyQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *readyQueue) Push(x any)   { *q = append(*q, x.(*scheduledTask)) }
func (q *readyQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
