package dsp

import (
	"fmt"
	"math"
)

// MelFloor 梅尔能量取对数前的下限，防止log10(0)
const MelFloor = 1e-10

// MelFilter 单个三角滤波器的稀疏表示，只保存非零权重所在的频点
type MelFilter struct {
	Indices []int
	Weights []float64
}

// MelFilterbank 稀疏三角梅尔滤波器组
type MelFilterbank struct {
	Filters []MelFilter
	bins    int
}

func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// NewMelFilterbank 在[lowFreq, highFreq]之间按HTK梅尔刻度等距生成numFilters个三角滤波器
func NewMelFilterbank(numFilters, nfft, sampleRate int, lowFreq, highFreq float64) (*MelFilterbank, error) {
	if numFilters <= 0 {
		return nil, fmt.Errorf("invalid filter count: %d", numFilters)
	}
	if sampleRate <= 0 || nfft <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d or nfft %d", sampleRate, nfft)
	}
	if highFreq <= 0 || highFreq > float64(sampleRate)/2 {
		highFreq = float64(sampleRate) / 2
	}
	if lowFreq < 0 || lowFreq >= highFreq {
		return nil, fmt.Errorf("invalid frequency range [%.1f, %.1f]", lowFreq, highFreq)
	}

	bins := nfft/2 + 1
	lowMel, highMel := hzToMel(lowFreq), hzToMel(highFreq)
	step := (highMel - lowMel) / float64(numFilters+1)

	// numFilters+2个边界点，换算成连续的频点坐标
	edges := make([]float64, numFilters+2)
	for i := range edges {
		edges[i] = melToHz(lowMel+float64(i)*step) * float64(nfft) / float64(sampleRate)
	}

	fb := &MelFilterbank{Filters: make([]MelFilter, numFilters), bins: bins}
	for m := 0; m < numFilters; m++ {
		left, center, right := edges[m], edges[m+1], edges[m+2]
		var f MelFilter
		for k := int(math.Ceil(left)); k <= int(math.Floor(right)) && k < bins; k++ {
			x := float64(k)
			var w float64
			switch {
			case x < center:
				w = (x - left) / (center - left)
			default:
				w = (right - x) / (right - center)
			}
			if w <= 0 {
				continue
			}
			f.Indices = append(f.Indices, k)
			f.Weights = append(f.Weights, w)
		}
		// 低频端滤波器过窄时至少保留中心最近的频点
		if len(f.Indices) == 0 {
			k := int(math.Round(center))
			if k >= bins {
				k = bins - 1
			}
			f.Indices = []int{k}
			f.Weights = []float64{1}
		}
		fb.Filters[m] = f
	}
	return fb, nil
}

// Bins 滤波器组期望的功率谱长度
func (fb *MelFilterbank) Bins() int {
	return fb.bins
}

// Size 滤波器数量
func (fb *MelFilterbank) Size() int {
	return len(fb.Filters)
}

// Apply 计算每个滤波器的加权能量，下限MelFloor后取log10，结果写入dst
func (fb *MelFilterbank) Apply(dst, power []float64) []float64 {
	if len(dst) < len(fb.Filters) {
		dst = make([]float64, len(fb.Filters))
	}
	dst = dst[:len(fb.Filters)]
	for m, f := range fb.Filters {
		var sum float64
		for i, k := range f.Indices {
			sum += f.Weights[i] * power[k]
		}
		if sum < MelFloor {
			sum = MelFloor
		}
		dst[m] = math.Log10(sum)
	}
	return dst
}
