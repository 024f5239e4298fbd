// Package pipeline — retryqueue.go реализует ограниченную очередь сообщений,
// которые не удалось классифицировать. При переполнении вытесняется самое
// старое сообщение: жертвуем полнотой ради живучести.
package pipeline

import "sync"

// RetryQueue — потокобезопасная FIFO-очередь с фиксированной ёмкостью.
type RetryQueue struct {
	mu       sync.Mutex
	items    []Message
	capacity int
}

// NewRetryQueue создаёт очередь ёмкостью capacity.
func NewRetryQueue(capacity int) *RetryQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &RetryQueue{capacity: capacity}
}

// Push добавляет сообщение в хвост очереди.
// Если очередь заполнена — самое старое сообщение вытесняется.
// Возвращает true, если произошло вытеснение.
func (q *RetryQueue) Push(m Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	evicted := false
	if len(q.items) >= q.capacity {
		q.items = q.items[1:]
		evicted = true
	}
	q.items = append(q.items, m)
	return evicted
}

// PopAll забирает все сообщения из очереди (для повторной обработки).
func (q *RetryQueue) PopAll() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.items
	q.items = nil
	return out
}

// Len возвращает текущий размер очереди.
func (q *RetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
