/*
 * Copyright 2023 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package pool provides the worker pool used by asynchronous proxy dispatch.
// Each submitted task runs on a reused goroutine, and a panicking task is
// recovered and handed to PanicHandler so a worker never takes the process down.
//
// Package pool 提供异步代理调用使用的协程池。
//
// Note: This file is inspired by:
// Valyala, A. (2023) workerpool.go (Version 1.48.0)
// [Source code]. https://github.com/valyala/fasthttp/blob/master/workerpool.go
// 1.Change the Serve(c net.Conn) method to Submit(fn func()) error method
// 2.Recover task panics through PanicHandler
package pool

import (
	"errors"
	"runtime"
	"sync"
	"time"
)

// ErrNoIdleWorkers is returned by Submit when MaxWorkersCount workers are busy.
var ErrNoIdleWorkers = errors.New("no idle workers")

const defaultMaxIdleWorkerDuration = 10 * time.Second

// WorkerPool serves submitted tasks using a pool of workers in FILO order,
// the most recently idle worker serves the next task.
//
// WorkerPool 以先进后出的顺序复用协程执行任务
//
//	wp := &WorkerPool{MaxWorkersCount: 100}
//	wp.Start()
//	defer wp.Stop()
//	err := wp.Submit(func() {})
type WorkerPool struct {
	// MaxWorkersCount is the maximum number of concurrently running workers.
	MaxWorkersCount int
	// MaxIdleWorkerDuration is how long an idle worker is kept, 10s by default.
	MaxIdleWorkerDuration time.Duration
	// PanicHandler receives the value of a recovered task panic. Panics are dropped when nil.
	PanicHandler func(v interface{})

	lock         sync.Mutex
	workersCount int
	mustStop     bool
	ready        []*workerChan
	stopCh       chan struct{}
	chanPool     sync.Pool
	startOnce    sync.Once
}

type workerChan struct {
	lastUseTime time.Time
	ch          chan func()
}

var workerChanCap = func() int {
	//单核时使用无缓冲通道，让提交者立即让出给工作协程
	if runtime.GOMAXPROCS(0) == 1 {
		return 0
	}
	return 1
}()

// Start starts the idle worker cleaner. Calling it more than once is a no-op.
func (wp *WorkerPool) Start() {
	wp.startOnce.Do(func() {
		wp.lock.Lock()
		wp.stopCh = make(chan struct{})
		wp.mustStop = false
		stopCh := wp.stopCh
		wp.lock.Unlock()

		wp.chanPool.New = func() interface{} {
			return &workerChan{ch: make(chan func(), workerChanCap)}
		}
		go func() {
			var scratch []*workerChan
			ticker := time.NewTicker(wp.idleDuration())
			defer ticker.Stop()
			for {
				select {
				case <-stopCh:
					return
				case <-ticker.C:
					wp.clean(&scratch)
				}
			}
		}()
	})
}

// Stop stops the cleaner and every idle worker. Busy workers exit after their current task.
func (wp *WorkerPool) Stop() {
	wp.lock.Lock()
	defer wp.lock.Unlock()
	if wp.stopCh == nil {
		return
	}
	close(wp.stopCh)
	wp.stopCh = nil
	for i := range wp.ready {
		wp.ready[i].ch <- nil
		wp.ready[i] = nil
	}
	wp.ready = wp.ready[:0]
	wp.mustStop = true
}

// Release implements types.Pool.
func (wp *WorkerPool) Release() {
	wp.Stop()
}

// Submit hands fn to an idle worker, creating one when the limit allows.
func (wp *WorkerPool) Submit(fn func()) error {
	ch := wp.getCh()
	if ch == nil {
		return ErrNoIdleWorkers
	}
	ch.ch <- fn
	return nil
}

// WorkersCount returns the number of live workers.
func (wp *WorkerPool) WorkersCount() int {
	wp.lock.Lock()
	defer wp.lock.Unlock()
	return wp.workersCount
}

func (wp *WorkerPool) idleDuration() time.Duration {
	if wp.MaxIdleWorkerDuration <= 0 {
		return defaultMaxIdleWorkerDuration
	}
	return wp.MaxIdleWorkerDuration
}

// clean stops the workers that have been idle for longer than idleDuration.
// ready is sorted by lastUseTime, so the expired workers are a prefix.
func (wp *WorkerPool) clean(scratch *[]*workerChan) {
	criticalTime := time.Now().Add(-wp.idleDuration())

	wp.lock.Lock()
	ready := wp.ready
	n := len(ready)
	l, r := 0, n-1
	for l <= r {
		mid := (l + r) / 2
		if criticalTime.After(ready[mid].lastUseTime) {
			l = mid + 1
		} else {
			r = mid - 1
		}
	}
	if r < 0 {
		wp.lock.Unlock()
		return
	}
	*scratch = append((*scratch)[:0], ready[:r+1]...)
	m := copy(ready, ready[r+1:])
	for i := m; i < n; i++ {
		ready[i] = nil
	}
	wp.ready = ready[:m]
	wp.lock.Unlock()

	expired := *scratch
	for i := range expired {
		expired[i].ch <- nil
		expired[i] = nil
	}
}

func (wp *WorkerPool) getCh() *workerChan {
	var ch *workerChan
	createWorker := false

	wp.lock.Lock()
	n := len(wp.ready) - 1
	if n < 0 {
		if wp.workersCount < wp.MaxWorkersCount {
			createWorker = true
			wp.workersCount++
		}
	} else {
		ch = wp.ready[n]
		wp.ready[n] = nil
		wp.ready = wp.ready[:n]
	}
	wp.lock.Unlock()

	if ch == nil {
		if !createWorker {
			return nil
		}
		v := wp.chanPool.Get()
		if v == nil {
			v = &workerChan{ch: make(chan func(), workerChanCap)}
		}
		ch = v.(*workerChan)
		go func() {
			wp.workerFunc(ch)
			wp.chanPool.Put(v)
		}()
	}
	return ch
}

func (wp *WorkerPool) release(ch *workerChan) bool {
	ch.lastUseTime = time.Now()
	wp.lock.Lock()
	defer wp.lock.Unlock()
	if wp.mustStop {
		return false
	}
	wp.ready = append(wp.ready, ch)
	return true
}

func (wp *WorkerPool) run(fn func()) {
	defer func() {
		if v := recover(); v != nil && wp.PanicHandler != nil {
			wp.PanicHandler(v)
		}
	}()
	fn()
}

func (wp *WorkerPool) workerFunc(ch *workerChan) {
	for fn := range ch.ch {
		if fn == nil {
			break
		}
		wp.run(fn)
		if !wp.release(ch) {
			break
		}
	}
	wp.lock.Lock()
	wp.workersCount--
	wp.lock.Unlock()
}
