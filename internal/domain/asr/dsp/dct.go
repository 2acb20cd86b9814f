package dsp

import (
	"fmt"
	"math"
)

// DCT 固定尺寸的II型离散余弦变换，余弦表预先计算
type DCT struct {
	numIn  int
	numOut int
	table  []float64 // [numOut][numIn]
	scale  float64
}

// NewDCT 创建从numIn个对数梅尔能量到numOut个倒谱系数的DCT，缩放因子为sqrt(2/numIn)
func NewDCT(numIn, numOut int) (*DCT, error) {
	if numIn <= 0 || numOut <= 0 || numOut > numIn {
		return nil, fmt.Errorf("invalid dct size: in=%d out=%d", numIn, numOut)
	}
	d := &DCT{
		numIn:  numIn,
		numOut: numOut,
		table:  make([]float64, numIn*numOut),
		scale:  math.Sqrt(2 / float64(numIn)),
	}
	for i := 0; i < numOut; i++ {
		for j := 0; j < numIn; j++ {
			d.table[i*numIn+j] = math.Cos(math.Pi * float64(i) * (float64(j) + 0.5) / float64(numIn))
		}
	}
	return d, nil
}

// Transform 把in变换为倒谱系数写入dst
func (d *DCT) Transform(dst, in []float64) []float64 {
	if len(dst) < d.numOut {
		dst = make([]float64, d.numOut)
	}
	dst = dst[:d.numOut]
	for i := 0; i < d.numOut; i++ {
		row := d.table[i*d.numIn : (i+1)*d.numIn]
		var sum float64
		for j, c := range row {
			sum += in[j] * c
		}
		dst[i] = sum * d.scale
	}
	return dst
}
