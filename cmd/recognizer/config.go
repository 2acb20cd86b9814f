package main

import (
	"context"
	"fmt"
	"os"

	"speech-cmd-recognizer/internal/config"
	redisdb "speech-cmd-recognizer/internal/db/redis"
	log "speech-cmd-recognizer/logger"
)

// Init 读取配置并初始化日志和Redis
func Init(ctx context.Context, configFile string) (*config.Config, error) {
	cfg, _, err := config.LoadFile(configFile)
	if err != nil {
		fmt.Printf("initConfig err: %+v\n", err)
		return nil, err
	}

	if err := log.Setup(cfg.Log); err != nil {
		fmt.Printf("initLog err: %+v\n", err)
		return nil, err
	}

	if err := initRedis(ctx, cfg); err != nil {
		log.Errorf("initRedis err: %+v", err)
		return nil, err
	}
	return cfg, nil
}

func initRedis(ctx context.Context, cfg *config.Config) error {
	if !cfg.Redis.Enable {
		return nil
	}
	redisConfig := cfg.Redis.Config
	return redisdb.Init(ctx, &redisConfig)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
