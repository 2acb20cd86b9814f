package inter

// Endpoints 一次端点检测的结果。
// StartFound/EndFound 明确表示是否找到满足最小长度的语音段，
// 不再用 (0,0) 同时表示“从第0帧开始的语音”和“没有语音”。
type Endpoints struct {
	Start      int
	End        int
	StartFound bool
	EndFound   bool
	// Speech 平滑后的逐帧语音标记
	Speech []bool
}

// Found 起点和终点都找到时语音段有效
func (e Endpoints) Found() bool {
	return e.StartFound && e.EndFound
}

// Frames 语音段包含的帧数，未找到时为0
func (e Endpoints) Frames() int {
	if !e.Found() {
		return 0
	}
	return e.End - e.Start + 1
}

// Legacy 返回固件协议中的起止帧，未找到的一端为0
func (e Endpoints) Legacy() (start, end int) {
	if e.StartFound {
		start = e.Start
	}
	if e.EndFound {
		end = e.End
	}
	return start, end
}

// EndpointDetector 基于逐帧能量和过零率的端点检测接口
type EndpointDetector interface {
	// Detect 根据逐帧能量和过零率定位语音段
	Detect(energy, zcr []float64) (Endpoints, error)
	// Reset 重置检测器状态
	Reset() error
	// Close 关闭并释放资源
	Close() error
}
