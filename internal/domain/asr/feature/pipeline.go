package feature

import "context"

// Features 一次完整流水线的特征快照，与Extractor内部缓冲区不共享内存
type Features struct {
	Processed  []float64
	Energy     []float64
	ZCR        []float64
	Skipped    []bool
	MFCC       [][]float64
	Delta      [][]float64
	DeltaDelta [][]float64
	Combined   [][]float64
}

// Run 依次执行预处理、MFCC提取和特征融合，返回结果的拷贝。
// ctx 只在阶段之间和逐帧谱分析中检查。
func (e *Extractor) Run(ctx context.Context, samples []uint16) (*Features, error) {
	basic, err := e.Preprocess(samples)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cep, err := e.ExtractMFCC(ctx)
	if err != nil {
		return nil, err
	}
	combined, err := e.Combine()
	if err != nil {
		return nil, err
	}
	return &Features{
		Processed:  append([]float64(nil), basic.Processed...),
		Energy:     append([]float64(nil), basic.Energy...),
		ZCR:        append([]float64(nil), basic.ZCR...),
		Skipped:    append([]bool(nil), basic.Skipped...),
		MFCC:       cloneMatrix(cep.MFCC),
		Delta:      cloneMatrix(cep.Delta),
		DeltaDelta: cloneMatrix(cep.DeltaDelta),
		Combined:   cloneMatrix(combined),
	}, nil
}

func cloneMatrix(m [][]float64) [][]float64 {
	if len(m) == 0 {
		return nil
	}
	out := newMatrix(len(m), len(m[0]))
	for i, row := range m {
		copy(out[i], row)
	}
	return out
}
