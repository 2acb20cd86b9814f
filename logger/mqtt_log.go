package logger

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// MqttLog 把paho mqtt客户端的内部日志转发到logrus
type MqttLog struct {
	level  log.Level
	prefix string
}

// NewMqttLog 创建指定级别的mqtt日志适配器
func NewMqttLog(level log.Level, prefix string) *MqttLog {
	return &MqttLog{level: level, prefix: prefix}
}

func (m *MqttLog) Println(v ...interface{}) {
	msg := strings.TrimSuffix(fmt.Sprintln(v...), "\n")
	log.WithField("caller", m.prefix).Log(m.level, msg)
}

func (m *MqttLog) Printf(format string, v ...interface{}) {
	log.WithField("caller", m.prefix).Logf(m.level, format, v...)
}
