// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"time"
)

// Task 定时任务
type Task struct {
	id       int64
	execute  time.Time
	interval time.Duration
	callback func()
	index    int
}

type taskQueue []*Task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	return q[i].execute.Before(q[j].execute)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x interface{}) {
	n := len(*q)
	task := x.(*Task)
	task.index = n
	*q = append(*q, task)
}

func (q *taskQueue) Pop() interface{} {
	old := *q
	n := len(old)
	task := old[n-1]
	task.index = -1
	*q = old[0 : n-1]
	return task
}

// Manager runs scheduled callbacks off a single ticking goroutine. It drives
// the watcher heartbeat sweep; nothing scheduled here is latency sensitive.
type Manager struct {
	queue  taskQueue
	mutex  sync.Mutex
	nextID int64
	quit   chan struct{}
	once   sync.Once
}

func NewManager() *Manager {
	m := &Manager{
		queue:  make(taskQueue, 0),
		nextID: 1,
		quit:   make(chan struct{}),
	}
	heap.Init(&m.queue)
	go m.process()
	return m
}

// Schedule registers a callback to run after delay. A positive interval makes
// it repeat. The returned id can be passed to Cancel.
func (m *Manager) Schedule(delay, interval time.Duration, callback func()) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	task := &Task{
		id:       m.nextID,
		execute:  time.Now().Add(delay),
		interval: interval,
		callback: callback,
	}
	m.nextID++

	heap.Push(&m.queue, task)
	return task.id
}

// Cancel removes a pending task. Cancelling an unknown id is a no-op.
func (m *Manager) Cancel(id int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i, task := range m.queue {
		if task.id == id {
			heap.Remove(&m.queue, i)
			break
		}
	}
}

// Stop shuts the ticking goroutine down. Pending tasks never fire afterwards.
func (m *Manager) Stop() {
	m.once.Do(func() {
		close(m.quit)
	})
}

func (m *Manager) process() {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-m.quit:
			return
		case now := <-ticker.C:
			for _, task := range m.due(now) {
				go task.callback()
			}
		}
	}
}

// due pops every task whose deadline has passed, re-queueing repeating ones.
func (m *Manager) due(now time.Time) []*Task {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var ready []*Task
	for m.queue.Len() > 0 {
		task := m.queue[0]
		if task.execute.After(now) {
			break
		}
		heap.Pop(&m.queue)
		ready = append(ready, task)

		if task.interval > 0 {
			task.execute = now.Add(task.interval)
			heap.Push(&m.queue, task)
		}
	}
	return ready
}
