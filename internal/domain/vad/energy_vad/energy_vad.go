// Package energy_vad 基于自适应能量阈值和固定过零率阈值的端点检测
package energy_vad

import (
	"fmt"

	"speech-cmd-recognizer/internal/domain/vad/inter"
	log "speech-cmd-recognizer/logger"
)

// EnergyVAD 无状态的能量/过零率端点检测器
type EnergyVAD struct {
	cfg Config
}

var _ inter.EndpointDetector = (*EnergyVAD)(nil)

// NewEnergyVAD 创建检测器
func NewEnergyVAD(cfg Config) (*EnergyVAD, error) {
	if cfg.EnergyFactor <= 0 {
		return nil, fmt.Errorf("invalid energy factor: %f", cfg.EnergyFactor)
	}
	if cfg.EnergyFloor < 0 {
		return nil, fmt.Errorf("invalid energy floor: %f", cfg.EnergyFloor)
	}
	if cfg.MinSpeechFrames <= 0 {
		return nil, fmt.Errorf("invalid min speech frames: %d", cfg.MinSpeechFrames)
	}
	return &EnergyVAD{cfg: cfg}, nil
}

// Config 返回检测参数
func (v *EnergyVAD) Config() Config {
	return v.cfg
}

// Detect 标记语音帧、做一次邻帧平滑，然后分别从前向后、从后向前
// 寻找至少MinSpeechFrames帧的连续语音段来确定起止帧。
func (v *EnergyVAD) Detect(energy, zcr []float64) (inter.Endpoints, error) {
	if len(energy) != len(zcr) {
		return inter.Endpoints{}, fmt.Errorf("energy/zcr length mismatch: %d != %d", len(energy), len(zcr))
	}
	n := len(energy)
	result := inter.Endpoints{Speech: make([]bool, n)}
	if n == 0 {
		return result, nil
	}

	var sum, maxEnergy float64
	for _, e := range energy {
		sum += e
		if e > maxEnergy {
			maxEnergy = e
		}
	}
	mean := sum / float64(n)
	threshold := mean * v.cfg.EnergyFactor
	if threshold < v.cfg.EnergyFloor {
		threshold = v.cfg.EnergyFloor
	}

	speech := result.Speech
	for f := 0; f < n; f++ {
		speech[f] = energy[f] > threshold || zcr[f] > v.cfg.ZcrThreshold
	}

	smooth(speech)

	minRun := v.cfg.MinSpeechFrames
	count := 0
	for f := 0; f < n; f++ {
		if !speech[f] {
			count = 0
			continue
		}
		count++
		if count >= minRun {
			result.Start = f - count + 1
			result.StartFound = true
			break
		}
	}

	// 从尾部向前扫描到起点为止，count帧的连续段末尾即终点
	count = 0
	for f := n - 1; f >= result.Start; f-- {
		if !speech[f] {
			count = 0
			continue
		}
		count++
		if count >= minRun {
			end := f + count - 1
			if end > n-1 {
				end = n - 1
			}
			result.End = end
			result.EndFound = true
			break
		}
	}

	log.Debugf("vad: frames=%d mean=%.6f max=%.6f threshold=%.6f start=%d(%v) end=%d(%v)",
		n, mean, maxEnergy, threshold, result.Start, result.StartFound, result.End, result.EndFound)
	return result, nil
}

// smooth 单遍平滑：左右邻帧一致且与当前帧不同时，当前帧改为邻帧的值。
// 从左到右原地修改，前一帧的修改会影响后一帧的判断。
func smooth(speech []bool) {
	for f := 1; f < len(speech)-1; f++ {
		if speech[f-1] == speech[f+1] && speech[f] != speech[f-1] {
			speech[f] = speech[f-1]
		}
	}
}

// Reset 无内部状态
func (v *EnergyVAD) Reset() error {
	return nil
}

// Close 无需释放资源
func (v *EnergyVAD) Close() error {
	return nil
}
