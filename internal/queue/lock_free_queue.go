package queue

import (
	"sync/atomic"
	"unsafe"
)

type itemNode[T any] struct {
	value T
	next  unsafe.Pointer
}

// lockFreeQueue is a Michael-Scott queue: any number of goroutines may enqueue and dequeue
// concurrently.
type lockFreeQueue[T any] struct {
	head   unsafe.Pointer
	tail   unsafe.Pointer
	length atomic.Int32
}

var _ Queue[int] = (*lockFreeQueue[int])(nil)

// NewLockFreeQueue creates a lock-free queue.
//
// The bus runner uses it for outbound telegrams: Send is called from any goroutine while the
// runner goroutine dequeues without blocking on the per-byte path.
func NewLockFreeQueue[T any]() Queue[T] {
	n := unsafe.Pointer(&itemNode[T]{})
	return &lockFreeQueue[T]{head: n, tail: n}
}

// Reset is not safe to call concurrently with other operations.
func (q *lockFreeQueue[T]) Reset() {
	n := unsafe.Pointer(&itemNode[T]{})
	atomic.StorePointer(&q.head, n)
	atomic.StorePointer(&q.tail, n)
	q.length.Store(0)
}

func (q *lockFreeQueue[T]) Enqueue(item T) {
	n := &itemNode[T]{value: item}

	for {
		tail := load[T](&q.tail)
		next := load[T](&tail.next)

		if tail != load[T](&q.tail) {
			continue
		}

		if next != nil {
			// tail is lagging behind, help it forward
			cas(&q.tail, tail, next)
			continue
		}

		if cas(&tail.next, next, n) {
			cas(&q.tail, tail, n)
			q.length.Add(1)

			return
		}
	}
}

func (q *lockFreeQueue[T]) Dequeue() (T, bool) {
	for {
		head := load[T](&q.head)
		tail := load[T](&q.tail)
		next := load[T](&head.next)

		if head != load[T](&q.head) {
			continue
		}

		if head == tail {
			if next == nil {
				var zero T
				return zero, false
			}
			cas(&q.tail, tail, next)

			continue
		}

		// read the value before the CAS, another dequeue may recycle next afterwards
		v := next.value
		if cas(&q.head, head, next) {
			q.length.Add(-1)
			return v, true
		}
	}
}

func (q *lockFreeQueue[T]) Peek() (T, bool) {
	for {
		head := load[T](&q.head)
		tail := load[T](&q.tail)
		next := load[T](&head.next)

		if head != load[T](&q.head) {
			continue
		}

		if head != tail {
			return next.value, true
		}

		if next == nil {
			var zero T
			return zero, false
		}
		cas(&q.tail, tail, next)
	}
}

func (q *lockFreeQueue[T]) IsEmpty() bool {
	return q.length.Load() == 0
}

func (q *lockFreeQueue[T]) Length() int {
	return int(q.length.Load())
}

func load[T any](p *unsafe.Pointer) *itemNode[T] {
	return (*itemNode[T])(atomic.LoadPointer(p))
}

func cas[T any](p *unsafe.Pointer, oldItem, newItem *itemNode[T]) bool {
	return atomic.CompareAndSwapPointer(p, unsafe.Pointer(oldItem), unsafe.Pointer(newItem))
}
