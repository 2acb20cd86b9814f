// Package dsp 提供语音特征提取用到的基础谱分析原语：
// 汉明窗、实数FFT功率谱、稀疏梅尔滤波器组以及DCT-II。
package dsp

import "math"

// HammingWindow 生成长度为n的汉明窗 w[i] = 0.54 - 0.46*cos(2*pi*i/(n-1))
func HammingWindow(n int) []float64 {
	if n <= 0 {
		return nil
	}
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := 0; i < n; i++ {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// ApplyWindow 将frame与window逐点相乘写入dst，dst可以与frame相同
func ApplyWindow(dst, frame, window []float64) {
	for i := range window {
		dst[i] = frame[i] * window[i]
	}
}
