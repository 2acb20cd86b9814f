package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	mqtt_server "speech-cmd-recognizer/internal/app/mqtt_server"
	log "speech-cmd-recognizer/logger"
)

func initConfig(configFile string) (*mqtt_server.Config, error) {
	viper.SetConfigFile(configFile)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.stdout", true)
	viper.SetDefault("mqtt_server.listen_host", "0.0.0.0")
	viper.SetDefault("mqtt_server.listen_port", 1883)
	viper.SetDefault("mqtt_server.topic_prefix", "speech")
	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var logOpts log.Options
	if err := viper.UnmarshalKey("log", &logOpts); err != nil {
		return nil, err
	}
	if err := log.Setup(logOpts); err != nil {
		return nil, err
	}

	var cfg mqtt_server.Config
	if err := viper.UnmarshalKey("mqtt_server", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	configFile := flag.String("c", "config/broker.json", "配置文件路径")
	flag.Parse()

	cfg, err := initConfig(*configFile)
	if err != nil {
		fmt.Printf("初始化失败: %v\n", err)
		os.Exit(1)
	}

	broker, err := mqtt_server.NewBroker(*cfg)
	if err != nil {
		log.Errorf("创建MQTT服务器失败: %v", err)
		os.Exit(1)
	}
	if err := broker.Start(); err != nil {
		log.Errorf("启动MQTT服务器失败: %v", err)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Info("MQTT服务器已启动，按 Ctrl+C 退出")
	<-quit

	log.Info("正在关闭MQTT服务器...")
	if err := broker.Close(); err != nil {
		log.Errorf("关闭MQTT服务器失败: %v", err)
	}
	log.Info("MQTT服务器已关闭")
}
