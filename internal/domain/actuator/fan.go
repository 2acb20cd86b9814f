// Package actuator 根据识别结果控制风扇档位和指示灯
package actuator

import (
	"sync"

	"speech-cmd-recognizer/constants"
	log "speech-cmd-recognizer/logger"
)

// 各档位对应的PWM占空比
var SpeedDuties = [...]int{0, 30, 60, 90}

const (
	MaxLevel = len(SpeedDuties) - 1

	LedAdd = 1
	LedSub = 2
)

// Driver 电机和指示灯的硬件抽象
type Driver interface {
	SetDuty(duty int) error
	ToggleLED(n int) error
}

// LogDriver 只打印日志的驱动
type LogDriver struct{}

func (LogDriver) SetDuty(duty int) error {
	log.Infof("风扇占空比: %d", duty)
	return nil
}

func (LogDriver) ToggleLED(n int) error {
	log.Infof("切换LED%d", n)
	return nil
}

// FanController 风扇档位状态机
type FanController struct {
	mu     sync.Mutex
	driver Driver
	level  int
}

// NewFanController 初始档位0
func NewFanController(driver Driver) (*FanController, error) {
	f := &FanController{driver: driver}
	if err := driver.SetDuty(SpeedDuties[0]); err != nil {
		return nil, err
	}
	return f, nil
}

// Level 当前档位
func (f *FanController) Level() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level
}

// Apply 语音命令：add升一档并切换LED1，sub降一档并切换LED2，其它保持。
// 已在最高或最低档时只切换指示灯。
func (f *FanController) Apply(label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	level := f.level
	switch label {
	case constants.LabelAdd:
		if err := f.driver.ToggleLED(LedAdd); err != nil {
			return err
		}
		if level < MaxLevel {
			level++
		}
	case constants.LabelSub:
		if err := f.driver.ToggleLED(LedSub); err != nil {
			return err
		}
		if level > 0 {
			level--
		}
	default:
		return nil
	}
	f.level = level
	return f.driver.SetDuty(SpeedDuties[level])
}
