// Package poll schedules the periodic battery reads of sbsctl poll.
package poll

import (
	"container/heap"
	"context"
	"math/rand"
	"sync"
	"time"
)

// Tick asks the consumer to run job now.
type Tick struct {
	Job   string
	Every time.Duration
	At    time.Time

	Failures int // consecutive failed runs reported for job
	Missed   int // ticks dropped since the last delivered one
}

// A failing job waits every<<n before its next tick, n capped here.
const maxBackoffShift = 4

type entry struct {
	job      string
	due      int64
	every    time.Duration
	jitter   time.Duration
	failures int
	missed   int
	index    int
}

type queue []*entry

func (q queue) Len() int           { return len(q) }
func (q queue) Less(i, j int) bool { return q[i].due < q[j].due }
func (q queue) Swap(i, j int)      { q[i], q[j] = q[j], q[i]; q[i].index = i; q[j].index = j }
func (q *queue) Push(x any)        { e := x.(*entry); e.index = len(*q); *q = append(*q, e) }
func (q *queue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	e.index = -1
	*q = old[:n-1]
	return e
}

// Scheduler emits a Tick per job on its own period. A consumer that falls
// behind loses ticks rather than queueing them; the loss is counted in the
// next delivered Tick. Run outcomes fed back through Report stretch the
// schedule of a job whose battery reads fail or run long.
type Scheduler struct {
	mu   sync.Mutex
	wake chan struct{}
	jobs map[string]*entry
	q    queue
	rand *rand.Rand
	out  chan<- Tick
}

func NewScheduler(out chan<- Tick) *Scheduler {
	return &Scheduler{
		wake: make(chan struct{}, 1),
		jobs: make(map[string]*entry),
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
		out:  out,
	}
}

// Every adds or reschedules job. The first tick comes after one period
// (plus jitter); immediate runs are the caller's business.
func (s *Scheduler) Every(job string, every, jitter time.Duration) {
	if every <= 0 || job == "" {
		return
	}
	if jitter < 0 {
		jitter = 0
	}
	s.mu.Lock()
	due := time.Now().Add(s.jittered(every, jitter)).UnixNano()
	if e := s.jobs[job]; e != nil {
		e.every, e.jitter, e.due = every, jitter, due
		heap.Fix(&s.q, e.index)
	} else {
		e := &entry{job: job, due: due, every: every, jitter: jitter, index: -1}
		s.jobs[job] = e
		heap.Push(&s.q, e)
	}
	s.mu.Unlock()
	s.wakeup()
}

// Stop removes job.
func (s *Scheduler) Stop(job string) {
	s.mu.Lock()
	if e := s.jobs[job]; e != nil {
		heap.Remove(&s.q, e.index)
		delete(s.jobs, job)
	}
	s.mu.Unlock()
	s.wakeup()
}

// Jobs returns the number of scheduled jobs.
func (s *Scheduler) Jobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Run emits ticks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait := s.nextWait()
		switch {
		case wait < 0:
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
			}
			continue
		case wait == 0:
			if t, ok := s.pop(); ok {
				select {
				case s.out <- t:
					s.delivered(t.Job)
				default:
					s.dropped(t.Job)
				}
			}
			continue
		}

		timer.Reset(time.Duration(wait))
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// pop re-arms the earliest due job and returns its tick.
func (s *Scheduler) pop() (Tick, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if len(s.q) == 0 || s.q[0].due > now.UnixNano() {
		return Tick{}, false
	}
	e := s.q[0]
	e.due = now.Add(s.jittered(e.every, e.jitter)).UnixNano()
	heap.Fix(&s.q, 0)
	return Tick{Job: e.job, Every: e.every, At: now, Failures: e.failures, Missed: e.missed}, true
}

func (s *Scheduler) delivered(job string) {
	s.mu.Lock()
	if e := s.jobs[job]; e != nil {
		e.missed = 0
	}
	s.mu.Unlock()
}

func (s *Scheduler) dropped(job string) {
	s.mu.Lock()
	if e := s.jobs[job]; e != nil {
		e.missed++
	}
	s.mu.Unlock()
}

// Report records the outcome of one run of job and returns how long the
// next tick was pushed out, or 0.
//
// A failed run backs the job off to every<<failures (at most 16 periods)
// so an absent or wedged battery is not hammered. A successful run restores
// the normal period; if it took longer than that period the next tick is
// still held a full period past its end, leaving the bus idle in between.
func (s *Scheduler) Report(job string, took time.Duration, err error) time.Duration {
	s.mu.Lock()
	e := s.jobs[job]
	if e == nil {
		s.mu.Unlock()
		return 0
	}
	var wait time.Duration
	if err != nil {
		e.failures++
		wait = e.every << min(e.failures, maxBackoffShift)
	} else {
		e.failures = 0
		if took > e.every {
			wait = e.every
		}
	}
	if wait > 0 {
		if due := time.Now().Add(wait).UnixNano(); due >= e.due {
			e.due = due
			heap.Fix(&s.q, e.index)
		} else {
			wait = 0
		}
	}
	s.mu.Unlock()
	s.wakeup()
	return wait
}

func (s *Scheduler) nextWait() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.q) == 0 {
		return -1
	}
	if d := s.q[0].due - time.Now().UnixNano(); d > 0 {
		return d
	}
	return 0
}

func (s *Scheduler) wakeup() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) jittered(every, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return every
	}
	return every + time.Duration(s.rand.Int63n(int64(jitter)+1))
}
