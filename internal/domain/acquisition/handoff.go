package acquisition

import (
	"context"
	"errors"
	"sync"

	"speech-cmd-recognizer/internal/util"
)

var ErrBusy = errors.New("acquisition already in progress")

type acquired struct {
	buf []uint16
	err error
}

// Handoff 采集协程与处理循环之间的单槽交接：
// Start 触发一次采集，Wait 取走结果；结果被取走之前不能再次Start。
type Handoff struct {
	source Source
	slot   *util.Slot[acquired]

	mu       sync.Mutex
	inFlight bool
	wg       sync.WaitGroup
}

func NewHandoff(source Source) *Handoff {
	return &Handoff{source: source, slot: util.NewSlot[acquired]()}
}

// Start 在后台协程中采集一个缓冲区
func (h *Handoff) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.inFlight {
		return ErrBusy
	}
	h.inFlight = true

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		buf, err := h.source.Acquire(ctx)
		_ = h.slot.Put(acquired{buf: buf, err: err})
	}()
	return nil
}

// Busy 是否有采集在途或结果未取走
func (h *Handoff) Busy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inFlight
}

// Wait 阻塞直到缓冲区就绪或ctx结束
func (h *Handoff) Wait(ctx context.Context) ([]uint16, error) {
	item, err := h.slot.Take(ctx, 0)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.inFlight = false
	h.mu.Unlock()
	return item.buf, item.err
}

// Close 等待在途的采集结束并关闭槽位
func (h *Handoff) Close() {
	h.wg.Wait()
	h.slot.Close()
}
