package workqueue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
)

type DoWorkPieceFunc func(piece int)

// ParallelizeUntil 把[0, pieces)按连续区间分给workers个协程执行，
// 直到全部完成或ctx取消。workers<=1时在当前协程顺序执行。
// 任一分片panic会被记录并作为错误返回。
func ParallelizeUntil(ctx context.Context, workers, pieces int, doWorkPiece DoWorkPieceFunc) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if pieces <= 0 {
		return ctx.Err()
	}
	if workers <= 1 {
		for piece := 0; piece < pieces; piece++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			doWorkPiece(piece)
		}
		return nil
	}
	if pieces < workers {
		workers = pieces
	}

	page := (pieces + workers - 1) / workers

	var (
		wg       sync.WaitGroup
		panicMu  sync.Mutex
		panicErr error
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(workIndex int) {
			defer func() {
				wg.Done()
				if r := recover(); r != nil {
					zap.L().Error("work has panic", zap.Any("panic", r), zap.Int("worker", workIndex))
					debug.PrintStack()
					panicMu.Lock()
					if panicErr == nil {
						panicErr = fmt.Errorf("worker %d panic: %v", workIndex, r)
					}
					panicMu.Unlock()
				}
			}()
			start := page * workIndex
			end := start + page
			if end > pieces {
				end = pieces
			}
			for j := start; j < end; j++ {
				select {
				case <-ctx.Done():
					return
				default:
					doWorkPiece(j)
				}
			}
		}(i)
	}
	wg.Wait()

	if panicErr != nil {
		return panicErr
	}
	return ctx.Err()
}
