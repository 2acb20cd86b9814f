// Package recognizer 主循环：采集 -> 等待 -> 识别或导出 -> 执行/发布 -> 重新采集
package recognizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"speech-cmd-recognizer/constants"
	"speech-cmd-recognizer/internal/domain/acquisition"
	"speech-cmd-recognizer/internal/domain/actuator"
	"speech-cmd-recognizer/internal/domain/asr"
	"speech-cmd-recognizer/internal/domain/telemetry"
	log "speech-cmd-recognizer/logger"
)

// App 组合各个组件，一次只处理一个缓冲区
type App struct {
	mode       string
	inspect    bool
	recognizer *asr.Recognizer
	handoff    *acquisition.Handoff
	sink       telemetry.Sink
	fan        *actuator.FanController
	retryDelay time.Duration
}

const (
	defaultRetryDelay = 100 * time.Millisecond
	maxRetryDelay     = 5 * time.Second
)

// Option 可选组件
type Option func(*App)

// WithFan 识别成功后驱动风扇
func WithFan(fan *actuator.FanController) Option {
	return func(a *App) {
		a.fan = fan
	}
}

// WithInspection 训练模式下额外发布检查数据
func WithInspection(enable bool) Option {
	return func(a *App) {
		a.inspect = enable
	}
}

// WithRetryDelay 周期失败后的首次等待时间，连续失败时翻倍，最长5秒
func WithRetryDelay(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.retryDelay = d
		}
	}
}

// NewApp sink不能为空，不需要输出时传 telemetry.NewMultiSink()
func NewApp(mode string, r *asr.Recognizer, source acquisition.Source, sink telemetry.Sink, opts ...Option) (*App, error) {
	if mode != constants.ModeRecognize && mode != constants.ModeTrain {
		return nil, fmt.Errorf("invalid mode: %s", mode)
	}
	if r == nil || source == nil || sink == nil {
		return nil, errors.New("recognizer, source and sink are required")
	}
	a := &App{
		mode:       mode,
		recognizer: r,
		handoff:    acquisition.NewHandoff(source),
		sink:       sink,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Run 循环处理直到ctx结束或采集来源耗尽，单个周期失败时记录日志并退避后重试
func (a *App) Run(ctx context.Context) error {
	defer a.handoff.Close()
	log.Infof("识别循环启动, mode=%s", a.mode)
	cycles, failures := 0, 0
	for {
		err := a.RunOnce(ctx)
		switch {
		case err == nil:
			cycles++
			failures = 0
			continue
		case errors.Is(err, io.EOF):
			log.Infof("采集来源已耗尽，共处理 %d 个周期", cycles)
			return nil
		case ctx.Err() != nil:
			log.Infof("识别循环退出: %v", ctx.Err())
			return ctx.Err()
		}

		failures++
		delay := a.backoff(failures)
		log.Errorf("处理周期失败(连续%d次), %v后重试: %v", failures, delay, err)
		select {
		case <-ctx.Done():
			log.Infof("识别循环退出: %v", ctx.Err())
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (a *App) backoff(failures int) time.Duration {
	delay := a.retryDelay
	for i := 1; i < failures && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

// RunOnce 采集并处理一个缓冲区
func (a *App) RunOnce(ctx context.Context) error {
	if err := a.handoff.Start(ctx); err != nil {
		return err
	}
	raw, err := a.handoff.Wait(ctx)
	if err != nil {
		return err
	}
	if a.mode == constants.ModeTrain {
		return a.train(ctx, raw)
	}
	return a.recognize(ctx, raw)
}

func (a *App) recognize(ctx context.Context, raw []uint16) error {
	result, err := a.recognizer.Recognize(ctx, raw)
	if err != nil {
		return err
	}
	log.Infof("Result: %s, Confidence: %.2f%%, success=%v, elapsed=%s",
		result.Label, result.Confidence*100, result.Success, result.Elapsed)

	if result.Success && a.fan != nil {
		if err := a.fan.Apply(result.Label); err != nil {
			log.Errorf("风扇控制失败: %v", err)
		}
	}

	payload, err := telemetry.EncodeResult(result)
	if err != nil {
		return err
	}
	return a.sink.Publish(ctx, constants.TelemetryKindResult, payload)
}

func (a *App) train(ctx context.Context, raw []uint16) error {
	capture, err := a.recognizer.ExtractFeatures(ctx, raw)
	if err != nil {
		return err
	}

	if a.inspect {
		var buf bytes.Buffer
		if err := telemetry.WriteInspection(&buf, capture); err != nil {
			return err
		}
		if err := a.sink.Publish(ctx, constants.TelemetryKindInspect, buf.Bytes()); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if err := telemetry.WriteTrainingData(&buf, capture); err != nil {
		if errors.Is(err, telemetry.ErrNoSpeech) {
			log.Warnf("周期 %s 未检测到语音，跳过训练数据", capture.ID)
			return nil
		}
		return err
	}
	return a.sink.Publish(ctx, constants.TelemetryKindCNNData, buf.Bytes())
}
