package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"speech-cmd-recognizer/internal/app/recognizer"
	"speech-cmd-recognizer/internal/config"
	redisdb "speech-cmd-recognizer/internal/db/redis"
	"speech-cmd-recognizer/internal/domain/acquisition"
	"speech-cmd-recognizer/internal/domain/actuator"
	"speech-cmd-recognizer/internal/domain/asr"
	"speech-cmd-recognizer/internal/domain/model"
	"speech-cmd-recognizer/internal/domain/telemetry"
	log "speech-cmd-recognizer/logger"
)

func main() {
	configFile := flag.String("c", "config/config.json", "配置文件路径")
	blankModel := flag.String("blank-model", "", "生成一个全零权重的模型描述文件后退出")
	flag.Parse()

	if *blankModel != "" {
		m := model.Blank("blank", 30, 39, []int{32, 16}, model.DefaultLabels)
		exitOnError(m.Save(*blankModel))
		fmt.Printf("模型描述已写入 %s\n", *blankModel)
		return
	}

	if *configFile == "" {
		fmt.Println("配置文件路径不能为空")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := Init(ctx, *configFile)
	exitOnError(err)
	defer log.SyncZap()
	defer redisdb.Close()

	app, cleanup, err := newApp(ctx, cfg)
	if err != nil {
		log.Errorf("创建应用失败: %v", err)
		exitOnError(err)
	}
	defer cleanup()

	log.Info("识别程序已启动，按 Ctrl+C 退出")
	if err := app.Run(ctx); err != nil && ctx.Err() == nil {
		log.Errorf("识别循环异常退出: %v", err)
	}
	log.Info("识别程序已关闭")
}

func newApp(ctx context.Context, cfg *config.Config) (*recognizer.App, func(), error) {
	var m *model.Model
	if cfg.Model.Path != "" {
		var err error
		if m, err = model.Load(cfg.Model.Path); err != nil {
			return nil, nil, err
		}
		log.Infof("模型已加载: %s input=%dx%d labels=%v", m.Name, m.InputHeight, m.InputWidth, m.Labels)
	}

	r, err := asr.New(cfg.Asr, m)
	if err != nil {
		return nil, nil, err
	}
	source, err := acquisition.NewSource(cfg.Source)
	if err != nil {
		r.Close()
		return nil, nil, err
	}
	sink, err := telemetry.NewSinks(ctx, cfg.Telemetry)
	if err != nil {
		r.Close()
		return nil, nil, err
	}

	opts := []recognizer.Option{recognizer.WithInspection(cfg.Telemetry.Inspect)}
	if cfg.Actuator.Enable {
		fan, err := actuator.NewFanController(actuator.LogDriver{})
		if err != nil {
			r.Close()
			sink.Close()
			return nil, nil, err
		}
		opts = append(opts, recognizer.WithFan(fan))
	}

	app, err := recognizer.NewApp(cfg.Mode, r, source, sink, opts...)
	if err != nil {
		r.Close()
		sink.Close()
		return nil, nil, err
	}
	cleanup := func() {
		if err := sink.Close(); err != nil {
			log.Warnf("关闭遥测输出失败: %v", err)
		}
		r.Close()
	}
	return app, cleanup, nil
}
