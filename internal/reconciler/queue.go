package reconciler

import (
	"context"
	"sync"
	"time"
)

// ReconcileRequest is a queued trigger.
type ReconcileRequest struct {
	Trigger Trigger

	// Attempt is the current retry attempt number (starts at 1).
	Attempt int

	// LastError is the error from the previous attempt, if any.
	LastError error
}

// workQueue is a FIFO of triggers, deduplicated by trigger. A trigger added
// while the same trigger is being processed is queued again once it is Done.
type workQueue struct {
	mu sync.Mutex

	queue      []ReconcileRequest
	processing map[Trigger]bool
	dirty      map[Trigger]ReconcileRequest
	cond       *sync.Cond

	shuttingDown bool

	delayed map[Trigger]*time.Timer
}

func newWorkQueue() *workQueue {
	q := &workQueue{
		processing: make(map[Trigger]bool),
		dirty:      make(map[Trigger]ReconcileRequest),
		delayed:    make(map[Trigger]*time.Timer),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Add adds or updates a request in the queue.
func (q *workQueue) Add(req ReconcileRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.addLocked(req)
}

func (q *workQueue) addLocked(req ReconcileRequest) {
	if q.shuttingDown {
		return
	}

	if q.processing[req.Trigger] {
		q.dirty[req.Trigger] = req
		return
	}

	for i, existing := range q.queue {
		if existing.Trigger == req.Trigger {
			q.queue[i] = req
			return
		}
	}

	q.queue = append(q.queue, req)
	q.cond.Signal()
}

// AddAfter adds req once delay has passed, replacing any pending delayed add
// of the same trigger.
func (q *workQueue) AddAfter(req ReconcileRequest, delay time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shuttingDown {
		return
	}
	if timer, ok := q.delayed[req.Trigger]; ok {
		timer.Stop()
	}
	q.delayed[req.Trigger] = time.AfterFunc(delay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.delayed, req.Trigger)
		q.addLocked(req)
	})
}

// Get retrieves the next request, blocking until one is available, the
// context is cancelled or the queue shuts down.
func (q *workQueue) Get(ctx context.Context) (ReconcileRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.queue) == 0 && !q.shuttingDown {
		if ctx.Err() != nil {
			return ReconcileRequest{}, false
		}

		// Wake the cond wait on cancellation. Closing done releases the
		// goroutine on a normal wakeup.
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				q.mu.Lock()
				q.cond.Broadcast()
				q.mu.Unlock()
			case <-done:
			}
		}()

		q.cond.Wait()
		close(done)
	}

	if len(q.queue) == 0 || ctx.Err() != nil {
		return ReconcileRequest{}, false
	}

	req := q.queue[0]
	q.queue = q.queue[1:]
	q.processing[req.Trigger] = true
	return req, true
}

// Done marks a request as processed.
func (q *workQueue) Done(req ReconcileRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.processing, req.Trigger)
	if dirtyReq, ok := q.dirty[req.Trigger]; ok {
		delete(q.dirty, req.Trigger)
		q.addLocked(dirtyReq)
	}
}

// Len returns the number of queued requests.
func (q *workQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Shutdown stops the queue and cancels delayed adds. Queued requests are
// dropped.
func (q *workQueue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.shuttingDown = true
	for _, timer := range q.delayed {
		timer.Stop()
	}
	q.delayed = make(map[Trigger]*time.Timer)
	q.queue = nil
	q.cond.Broadcast()
}
