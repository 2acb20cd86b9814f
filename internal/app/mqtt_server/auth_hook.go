package mqtt_server

import (
	"bytes"
	"strings"

	mqttServer "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"

	log "speech-cmd-recognizer/logger"
)

// AuthHook 连接鉴权
// 管理员账号可以发布和订阅任意主题，识别程序用它发布遥测数据；
// 其它客户端只有在未开启鉴权时才能连接。
type AuthHook struct {
	mqttServer.HookBase
	cfg Config
}

func (h *AuthHook) ID() string {
	return "telemetry-auth-hook"
}

func (h *AuthHook) Provides(b byte) bool {
	return b == mqttServer.OnConnectAuthenticate
}

func (h *AuthHook) OnConnectAuthenticate(cl *mqttServer.Client, pk packets.Packet) bool {
	if !h.cfg.EnableAuth {
		return true
	}
	if isAdmin(h.cfg, pk.Connect.Username, pk.Connect.Password) {
		log.Infof("管理员登录成功: %s", cl.ID)
		return true
	}
	log.Warnf("MQTT鉴权失败: client=%s username=%s", cl.ID, pk.Connect.Username)
	return false
}

func isAdmin(cfg Config, username, password []byte) bool {
	if cfg.Username == "" {
		return false
	}
	return string(username) == cfg.Username && bytes.Equal(password, []byte(cfg.Password))
}

// TelemetryHook 主题权限：管理员不受限制，其它客户端只能订阅遥测主题
type TelemetryHook struct {
	mqttServer.HookBase
	cfg Config
}

func (h *TelemetryHook) ID() string {
	return "telemetry-acl-hook"
}

func (h *TelemetryHook) Provides(b byte) bool {
	return b == mqttServer.OnACLCheck || b == mqttServer.OnPublish
}

func (h *TelemetryHook) OnACLCheck(cl *mqttServer.Client, topic string, write bool) bool {
	if string(cl.Properties.Username) == h.cfg.Username && h.cfg.Username != "" {
		return true
	}
	if write {
		log.Warnf("禁止客户端 %s 发布到 %s", cl.ID, topic)
		return false
	}
	return h.cfg.TopicPrefix == "" || strings.HasPrefix(topic, h.cfg.TopicPrefix+"/")
}

func (h *TelemetryHook) OnPublish(cl *mqttServer.Client, pk packets.Packet) (packets.Packet, error) {
	log.Debugf("遥测发布: client=%s topic=%s bytes=%d", cl.ID, pk.TopicName, len(pk.Payload))
	return pk, nil
}
