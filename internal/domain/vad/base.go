package vad

import (
	"fmt"

	"speech-cmd-recognizer/constants"
	"speech-cmd-recognizer/internal/domain/vad/energy_vad"
	"speech-cmd-recognizer/internal/domain/vad/inter"
)

// AcquireDetector 按provider创建端点检测器
func AcquireDetector(provider string, config map[string]interface{}) (inter.EndpointDetector, error) {
	switch provider {
	case constants.VadTypeEnergy, "":
		return energy_vad.NewFromMap(config)
	default:
		return nil, fmt.Errorf("invalid vad provider: %s", provider)
	}
}

// ReleaseDetector 释放检测器
func ReleaseDetector(d inter.EndpointDetector) error {
	if d == nil {
		return nil
	}
	return d.Close()
}
