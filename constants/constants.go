package constants

// 运行模式
const (
	ModeRecognize = "recognize"
	ModeTrain     = "train"
)

// 端点检测实现
const (
	VadTypeEnergy = "energy_vad"
)

// 采集来源
const (
	SourceTypeWav  = "wav"
	SourceTypeDir  = "dir"
	SourceTypeTone = "tone"
)

// 遥测输出
const (
	SinkTypeWriter = "writer"
	SinkTypeMqtt   = "mqtt"
	SinkTypeRedis  = "redis"
	SinkTypeWav    = "wav"
)

// 遥测数据种类，同时作为mqtt topic和redis key的后缀
const (
	TelemetryKindResult  = "result"
	TelemetryKindInspect = "inspect"
	TelemetryKindCNNData = "cnn_data"
)

// 标签
const (
	LabelAdd     = "add"
	LabelNone    = "none"
	LabelSub     = "sub"
	LabelUnknown = "unknown"
)
