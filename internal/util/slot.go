package util

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrSlotClosed = errors.New("slot closed")
var ErrSlotFull = errors.New("slot already holds an item")
var ErrSlotTimeout = errors.New("slot take timeout")
var ErrSlotEmpty = errors.New("slot empty (non-blocking take)")

// Slot 单槽位邮箱：一个生产者放入、一个消费者取出，
// 槽位被占用时拒绝再次放入，保证生产和消费不重叠。
type Slot[T any] struct {
	mu     sync.Mutex
	ch     chan T
	closed bool
}

// NewSlot 创建空槽位
func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{
		ch: make(chan T, 1),
	}
}

// Put 放入一个元素，槽位已满返回ErrSlotFull，不阻塞
func (s *Slot[T]) Put(val T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSlotClosed
	}
	select {
	case s.ch <- val:
		return nil
	default:
		return ErrSlotFull
	}
}

// Pending 槽位中是否有未取走的元素
func (s *Slot[T]) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ch) > 0
}

// Take 取出元素
// timeout=0: 阻塞直到有元素、槽位关闭或ctx结束
// timeout<0: 非阻塞
// timeout>0: 最多等待timeout
func (s *Slot[T]) Take(ctx context.Context, timeout time.Duration) (T, error) {
	var zero T
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return zero, ErrSlotClosed
	}
	ch := s.ch
	s.mu.Unlock()

	if timeout < 0 {
		select {
		case v, ok := <-ch:
			if !ok {
				return zero, ErrSlotClosed
			}
			return v, nil
		default:
			return zero, ErrSlotEmpty
		}
	}

	var after <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		after = timer.C
	}
	select {
	case v, ok := <-ch:
		if !ok {
			return zero, ErrSlotClosed
		}
		return v, nil
	case <-after:
		return zero, ErrSlotTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Clear 丢弃槽位中未取走的元素
func (s *Slot[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case <-s.ch:
	default:
	}
}

// Close 永久关闭槽位，阻塞中的Take会返回ErrSlotClosed
func (s *Slot[T]) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	s.mu.Unlock()
}
