package worker

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrDispatcherBusy is returned when the intake queue is full.
	ErrDispatcherBusy = errors.New("dispatcher busy")
	// ErrDispatcherClosed is returned for work submitted after Close.
	ErrDispatcherClosed = errors.New("dispatcher closed")
)

type userQueue struct {
	jobs     []*job
	enqueued bool
}

// Dispatcher runs submitted work on a bounded worker pool, taking one job per
// user in turn so a single busy user cannot starve the rest.
type Dispatcher struct {
	pool   *jobChannelPool
	intake chan *job // interface for outer jobs to get in the dispatcher

	mu        sync.Mutex
	queues    map[string]*userQueue // job queue for each user
	ready     *list.List            // round robin order of user IDs with pending jobs
	positions map[string]*list.Element

	closing   chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// Stats is a point-in-time view of the dispatcher.
type Stats struct {
	Workers int `json:"workers"`
	Idle    int `json:"idle"`
	Queued  int `json:"queued"`
}

func NewDispatcher(minWorkers, maxWorkers, queueSize int, idleTimeout time.Duration) *Dispatcher {
	d := newDispatcher(minWorkers, maxWorkers, queueSize, idleTimeout)

	// warm up workers
	for i := 0; i < minWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

func newDispatcher(minWorkers, maxWorkers, queueSize int, idleTimeout time.Duration) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Dispatcher{
		pool:      newJobChannelPool(minWorkers, maxWorkers, idleTimeout),
		intake:    make(chan *job, queueSize),
		queues:    make(map[string]*userQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
		closing:   make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// Do runs fn on a worker on behalf of userID and waits for it. A full intake
// queue fails fast with ErrDispatcherBusy. If ctx ends first Do returns
// ctx.Err() and fn, if already started, keeps running until it observes ctx.
func (d *Dispatcher) Do(ctx context.Context, userID string, fn func(ctx context.Context) error) error {
	select {
	case <-d.closing:
		return ErrDispatcherClosed
	default:
	}

	j := newJob(ctx, userID, fn)
	select {
	case d.intake <- j:
	default:
		return ErrDispatcherBusy
	}

	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stopped:
		select {
		case <-j.done:
			return j.err
		default:
			return ErrDispatcherClosed
		}
	}
}

// Close stops accepting work, fails queued jobs and lets running ones finish.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.closing)
		d.pool.close()
		<-d.stopped
	})
}

func (d *Dispatcher) Stats() Stats {
	running, idle := d.pool.stats()
	d.mu.Lock()
	queued := 0
	for _, q := range d.queues {
		queued += len(q.jobs)
	}
	d.mu.Unlock()
	return Stats{Workers: running, Idle: idle, Queued: queued + len(d.intake)}
}

func (d *Dispatcher) run() {
	defer close(d.stopped)
	for {
		// dispatch one job of the user at the front of the ready list
		if !d.dispatchOne() {
			select {
			case j := <-d.intake: // nothing to dispatch, wait for work
				d.enqueueJob(j)
			case <-d.closing:
				d.drain()
				return
			}
			continue
		}
		select {
		case j := <-d.intake:
			d.enqueueJob(j)
		case <-d.closing:
			d.drain()
			return
		default:
		}
	}
}

func (d *Dispatcher) enqueueJob(j *job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[j.userID]
	if q == nil {
		q = &userQueue{}
		d.queues[j.userID] = q
	}
	q.jobs = append(q.jobs, j)
	if q.enqueued {
		// user already waiting for a turn
		return
	}
	q.enqueued = true
	d.positions[j.userID] = d.ready.PushBack(j.userID)
}

// next pops the first job of the user at the front of the ready list and
// moves that user to the back.
func (d *Dispatcher) next() *job {
	d.mu.Lock()
	defer d.mu.Unlock()

	elem := d.ready.Front()
	if elem == nil {
		return nil
	}
	userID := elem.Value.(string)
	q := d.queues[userID]
	j := q.jobs[0]
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		// user has nothing left, leave the ready list
		d.ready.Remove(elem)
		delete(d.positions, userID)
		delete(d.queues, userID)
	} else {
		d.ready.MoveToBack(elem)
	}
	return j
}

func (d *Dispatcher) dispatchOne() bool {
	j := d.next()
	if j == nil {
		return false
	}
	workerChan := d.pool.acquire()
	if workerChan == nil {
		j.fail(ErrDispatcherClosed)
		return true
	}
	debugLog("dispatch job", "user_id", j.userID)
	workerChan <- j
	return true
}

// drain fails everything that never reached a worker.
func (d *Dispatcher) drain() {
	d.mu.Lock()
	for userID, q := range d.queues {
		for _, j := range q.jobs {
			j.fail(ErrDispatcherClosed)
		}
		delete(d.queues, userID)
	}
	d.ready.Init()
	d.positions = make(map[string]*list.Element)
	d.mu.Unlock()

	for {
		select {
		case j := <-d.intake:
			j.fail(ErrDispatcherClosed)
		default:
			return
		}
	}
}
