package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

var (
	ErrScanQueueFull   = errors.New("plagiarism scan queue is full")
	ErrScanQueueClosed = errors.New("plagiarism scan queue is closed")
)

// Scanner runs one scan to completion.
type Scanner interface {
	Scan(ctx context.Context, scanID uint) error
}

// PendingLister reports scans that are stored but not processed yet.
type PendingLister interface {
	PendingIDs(ctx context.Context) ([]uint, error)
}

// ScanQueue runs scans on a fixed pool of background workers. A scan id is held at most
// once between Enqueue and the end of its run.
type ScanQueue struct {
	scanner Scanner
	jobs    chan uint
	ctx     context.Context

	mu      sync.Mutex
	closed  bool
	queued  map[uint]struct{}
	wg      sync.WaitGroup
	sweepWg sync.WaitGroup
	stop    chan struct{}
}

func NewScanQueue(ctx context.Context, scanner Scanner, workers, buffer int) *ScanQueue {
	if workers < 1 {
		workers = 1
	}
	if buffer < workers {
		buffer = workers * 16
	}
	q := &ScanQueue{
		scanner: scanner,
		jobs:    make(chan uint, buffer),
		ctx:     persistentContext(ctx),
		queued:  make(map[uint]struct{}),
		stop:    make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	return q
}

// Enqueue never blocks; it reports ErrScanQueueFull when the buffer is exhausted. An id that
// is already queued or running is accepted without being queued twice.
func (q *ScanQueue) Enqueue(scanID uint) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrScanQueueClosed
	}
	if _, ok := q.queued[scanID]; ok {
		return nil
	}
	select {
	case q.jobs <- scanID:
		q.queued[scanID] = struct{}{}
		return nil
	default:
		return ErrScanQueueFull
	}
}

// RequeuePending enqueues every pending scan the lister reports. When the buffer fills up the
// remaining scans stay pending for the next call.
func (q *ScanQueue) RequeuePending(ctx context.Context, lister PendingLister) (int, error) {
	ids, err := lister.PendingIDs(ctx)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, id := range ids {
		if err := q.Enqueue(id); err != nil {
			return queued, err
		}
		queued++
	}
	return queued, nil
}

// StartSweeper calls RequeuePending every interval until Close.
func (q *ScanQueue) StartSweeper(lister PendingLister, interval time.Duration) {
	if interval <= 0 {
		return
	}
	q.sweepWg.Add(1)
	go func() {
		defer q.sweepWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-q.stop:
				return
			case <-ticker.C:
				if _, err := q.RequeuePending(q.ctx, lister); err != nil && !errors.Is(err, ErrScanQueueClosed) {
					log.Printf("plagiarism scan sweep: %v", err)
				}
			}
		}
	}()
}

// Close stops accepting scans and waits for queued ones to finish.
func (q *ScanQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.stop)
	close(q.jobs)
	q.mu.Unlock()
	q.sweepWg.Wait()
	q.wg.Wait()
}

func (q *ScanQueue) work() {
	defer q.wg.Done()
	for scanID := range q.jobs {
		if err := q.scanner.Scan(q.ctx, scanID); err != nil && !errors.Is(err, ErrScanFinished) {
			log.Printf("plagiarism scan %d failed: %v", scanID, err)
		}
		q.mu.Lock()
		delete(q.queued, scanID)
		q.mu.Unlock()
	}
}
