// Package workerpool provides a small bounded-concurrency pool. The
// re-sealing sweep uses it to work through a user's conversations with a
// fixed number of workers while collecting per-task outcomes.
package workerpool

import (
	"runtime"
	"sync"
)

type Pool struct {
	tasks   chan task
	closing sync.Once
}

type task struct {
	run  func() interface{}
	room *Room
}

// Room groups the tasks of one batch and collects their results. Tasks from
// different rooms share the pool's workers.
type Room struct {
	pool    *Pool
	results chan interface{}
	wg      sync.WaitGroup
}

// New starts a pool with the given number of workers. workers < 1 defaults
// to three per CPU.
func New(workers int) *Pool {
	if workers < 1 {
		workers = runtime.NumCPU() * 3
	}

	p := &Pool{tasks: make(chan task)}
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for t := range p.tasks {
		t.room.results <- t.run()
		t.room.wg.Done()
	}
}

// Close stops the workers once queued tasks have drained. Safe to call more
// than once.
func (p *Pool) Close() {
	p.closing.Do(func() { close(p.tasks) })
}

// NewRoom creates a result-collection room sized for the expected number of
// tasks.
func (p *Pool) NewRoom(size int) *Room {
	if size < 1 {
		size = 1
	}
	return &Room{
		pool:    p,
		results: make(chan interface{}, size),
	}
}

// Go queues one task. Blocks while all workers are busy and the room buffer
// is full, which is what bounds the batch's concurrency.
func (r *Room) Go(run func() interface{}) {
	r.wg.Add(1)
	r.pool.tasks <- task{run: run, room: r}
}

// Collect waits for every queued task and returns all results. Order is not
// the submission order.
func (r *Room) Collect() []interface{} {
	go func() {
		r.wg.Wait()
		close(r.results)
	}()

	results := make([]interface{}, 0)
	for result := range r.results {
		results = append(results, result)
	}
	return results
}
