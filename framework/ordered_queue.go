package framework

import (
	"sort"
	"sync"
)

// OrderedQueue re-sequences items that are produced out of order, for instance by parallel
// workers, so that a single consumer can read them from C in counter order. Counters start
// at 1 and must be contiguous.
type OrderedQueue[T any] struct {
	C           chan T
	lastCounter int
	deferred    []deferredItem[T]
	lock        sync.Mutex
	closeOnce   sync.Once
}

type deferredItem[T any] struct {
	counter int
	item    T
}

func NewOrderedQueue[T any](channelSize int) *OrderedQueue[T] {
	return &OrderedQueue[T]{C: make(chan T, channelSize)}
}

func (q *OrderedQueue[T]) Accept(counter int, item T) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if counter > q.lastCounter+1 {
		q.deferred = append(q.deferred, deferredItem[T]{counter: counter, item: item})
		sort.Slice(q.deferred, func(i, j int) bool { return q.deferred[i].counter < q.deferred[j].counter })
		return
	}
	q.lastCounter = counter
	q.C <- item
	for len(q.deferred) > 0 {
		next := q.deferred[0]
		if next.counter != q.lastCounter+1 {
			break
		}
		q.deferred = q.deferred[1:]
		q.lastCounter++
		q.C <- next.item
	}
}

func (q *OrderedQueue[T]) Deferred() []T {
	q.lock.Lock()
	ret := make([]T, 0, len(q.deferred))
	for _, d := range q.deferred {
		ret = append(ret, d.item)
	}
	q.lock.Unlock()
	return ret
}

func (q *OrderedQueue[T]) Close() {
	q.closeOnce.Do(func() {
		close(q.C)
	})
}
