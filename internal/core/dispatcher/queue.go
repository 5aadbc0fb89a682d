package dispatcher

import "sync"

// serialQueue 按入队顺序逐个执行任务
//
// 有任务时才持有一个 goroutine，队列清空后退出。
type serialQueue struct {
	mu      sync.Mutex
	tasks   []func()
	running bool
}

func (q *serialQueue) push(task func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()

	go q.drain()
}

func (q *serialQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		task := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		task()
	}
}

// queueSet 每个键一个串行队列
//
// 队列清空后从表中移除，同一键同一时刻最多一个执行 goroutine。
type queueSet struct {
	mu     sync.Mutex
	queues map[string][]func()
}

func (s *queueSet) push(key string, task func()) {
	s.mu.Lock()
	if s.queues == nil {
		s.queues = make(map[string][]func())
	}
	tasks, running := s.queues[key]
	s.queues[key] = append(tasks, task)
	s.mu.Unlock()

	if !running {
		go s.drain(key)
	}
}

func (s *queueSet) drain(key string) {
	for {
		s.mu.Lock()
		tasks := s.queues[key]
		if len(tasks) == 0 {
			delete(s.queues, key)
			s.mu.Unlock()
			return
		}
		task := tasks[0]
		tasks[0] = nil
		s.queues[key] = tasks[1:]
		s.mu.Unlock()

		task()
	}
}

// len 返回仍有任务或正在执行的键数
func (s *queueSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues)
}
