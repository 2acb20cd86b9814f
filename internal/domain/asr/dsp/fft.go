package dsp

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
)

// PowerSpectrum 计算补零到NFFT点后的单边功率谱，内部复用FFT计划和缓冲区。
// 非并发安全，每个goroutine应持有自己的实例。
type PowerSpectrum struct {
	nfft   int
	fft    *fourier.FFT
	padded []float64
	coeffs []complex128
}

// NewPowerSpectrum 创建NFFT点功率谱计算器，nfft必须是2的幂
func NewPowerSpectrum(nfft int) (*PowerSpectrum, error) {
	if nfft < 2 || nfft&(nfft-1) != 0 {
		return nil, fmt.Errorf("nfft must be a power of two, got %d", nfft)
	}
	return &PowerSpectrum{
		nfft:   nfft,
		fft:    fourier.NewFFT(nfft),
		padded: make([]float64, nfft),
		coeffs: make([]complex128, nfft/2+1),
	}, nil
}

// Bins 返回功率谱的频点数 NFFT/2+1
func (p *PowerSpectrum) Bins() int {
	return p.nfft/2 + 1
}

// NFFT 返回FFT点数
func (p *PowerSpectrum) NFFT() int {
	return p.nfft
}

// Compute 对frame补零后做实数FFT，把 re^2+im^2 写入dst并返回。
// DC和Nyquist分量只取实部。dst为nil或长度不足时重新分配。
func (p *PowerSpectrum) Compute(dst, frame []float64) []float64 {
	bins := p.Bins()
	if len(dst) < bins {
		dst = make([]float64, bins)
	}
	dst = dst[:bins]

	n := copy(p.padded, frame)
	for i := n; i < p.nfft; i++ {
		p.padded[i] = 0
	}

	p.coeffs = p.fft.Coefficients(p.coeffs, p.padded)
	last := bins - 1
	for k, c := range p.coeffs {
		re := real(c)
		if k == 0 || k == last {
			dst[k] = re * re
			continue
		}
		im := imag(c)
		dst[k] = re*re + im*im
	}
	return dst
}
