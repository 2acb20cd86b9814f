// Package telemetry 把识别周期的中间数据编码为逐行文本协议，
// 并通过Sink发布到串口/文件、MQTT、Redis或WAV文件。
package telemetry

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"

	"speech-cmd-recognizer/internal/domain/asr"
)

var (
	ErrNoSpeech = errors.New("no speech detected for training data")
	ErrProtocol = errors.New("malformed training data")
)

const (
	eol = "\r\n"

	sampleStride = 10
	windowStride = 4
)

type lineWriter struct {
	w   *bufio.Writer
	err error
}

func (l *lineWriter) printf(format string, args ...interface{}) {
	if l.err != nil {
		return
	}
	_, l.err = fmt.Fprintf(l.w, format+eol, args...)
}

func (l *lineWriter) line(s string) {
	l.printf("%s", s)
}

func (l *lineWriter) flush() error {
	if l.err != nil {
		return l.err
	}
	return l.w.Flush()
}

// keyFrames 检查模式下导出的三帧：首帧、中间帧、末帧
func keyFrames(n int) []int {
	if n <= 0 {
		return nil
	}
	return []int{0, n / 2, n - 1}
}

// WriteInspection 导出预处理、窗函数、关键帧特征和端点检测结果
func WriteInspection(w io.Writer, c *asr.Capture) error {
	lw := &lineWriter{w: bufio.NewWriter(w)}
	f := c.Features

	lw.line("DATA_BEGIN")
	lw.printf("TOTAL_SAMPLES:%d", len(f.Processed))

	lw.line("PROCESSED_SAMPLES_BEGIN")
	for i := 0; i < len(f.Processed); i += sampleStride {
		lw.printf("SAMPLE %d %.4f", i, f.Processed[i])
	}
	lw.line("PROCESSED_SAMPLES_END")

	lw.line("WINDOW_DATA_BEGIN")
	for i := 0; i < len(c.Window); i += windowStride {
		lw.printf("WINDOW %d %.6f", i, c.Window[i])
	}
	lw.line("WINDOW_DATA_END")

	frames := keyFrames(len(f.Energy))
	lw.line("BASIC_FEATURES_BEGIN")
	for _, idx := range frames {
		lw.printf("FRAME_FEATURE:%d", idx)
		lw.printf("ENERGY %.6f", f.Energy[idx])
		lw.printf("ZCR %.6f", f.ZCR[idx])
	}
	lw.line("BASIC_FEATURES_END")

	lw.line("MFCC_FEATURES_BEGIN")
	for _, idx := range frames {
		lw.printf("FRAME_MFCC:%d", idx)
		writeCoefficients(lw, "STATIC_MFCC", "MFCC", f.MFCC[idx])
		writeCoefficients(lw, "DELTA_MFCC", "DELTA", f.Delta[idx])
		writeCoefficients(lw, "DELTA_DELTA_MFCC", "DELTA_DELTA", f.DeltaDelta[idx])
	}
	lw.line("MFCC_FEATURES_END")

	start, end := c.Endpoints.Legacy()
	lw.line("VAD_RESULT_BEGIN")
	lw.printf("SPEECH_START:%d", start)
	lw.printf("SPEECH_END:%d", end)
	lw.line("VAD_RESULT_END")

	lw.line("DATA_END")
	return lw.flush()
}

func writeCoefficients(lw *lineWriter, block, prefix string, values []float64) {
	lw.line(block + "_BEGIN")
	for i, v := range values {
		lw.printf("%s_%d %.6f", prefix, i, v)
	}
	lw.line(block + "_END")
}

// WaveformRange 语音段对应的处理后采样区间 [from, to)
func WaveformRange(c *asr.Capture) (from, to int) {
	hop := c.Config.Hop()
	from = c.Endpoints.Start * hop
	to = (c.Endpoints.End+1)*hop + c.Config.FrameOverlap
	if n := len(c.Features.Processed); to > n {
		to = n
	}
	if from > to {
		from = to
	}
	return from, to
}

// WriteTrainingData 导出语音段内的融合特征和处理后波形，供离线训练使用
func WriteTrainingData(w io.Writer, c *asr.Capture) error {
	if !c.Endpoints.Found() {
		return ErrNoSpeech
	}
	lw := &lineWriter{w: bufio.NewWriter(w)}
	ep := c.Endpoints
	combined := c.Features.Combined

	lw.line("CNN_DATA_BEGIN")
	lw.printf("SPEECH_START:%d", ep.Start)
	lw.printf("SPEECH_END:%d", ep.End)
	lw.printf("VALID_FRAMES:%d", ep.Frames())
	lw.printf("FEATURE_DIM:%d", c.Config.FeatureDim())

	lw.line("FEATURE_DATA_BEGIN")
	for f := ep.Start; f <= ep.End; f++ {
		lw.printf("FRAME:%d", f-ep.Start)
		lw.line(joinFloats(combined[f], 'f', 6))
	}
	lw.line("FEATURE_DATA_END")

	from, to := WaveformRange(c)
	lw.line("RAW_WAVEFORM_BEGIN")
	lw.printf("SAMPLES:%d", to-from)
	lw.line(joinFloats(c.Features.Processed[from:to], 'f', 4))
	lw.line("RAW_WAVEFORM_END")

	lw.line("CNN_DATA_END")
	return lw.flush()
}

func joinFloats(values []float64, format byte, prec int) string {
	var sb strings.Builder
	for i, v := range values {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(v, format, prec, 64))
	}
	return sb.String()
}

// TrainingRecord 一条训练数据
type TrainingRecord struct {
	SpeechStart int
	SpeechEnd   int
	ValidFrames int
	FeatureDim  int
	Features    [][]float64
	Samples     []float64
}

// TrainingDecoder 从流中逐条读取训练数据，内部的Scanner在多次Next之间保留
type TrainingDecoder struct {
	sc *bufio.Scanner
}

// NewTrainingDecoder 创建解码器
func NewTrainingDecoder(r io.Reader) *TrainingDecoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &TrainingDecoder{sc: sc}
}

// Next 读取下一条训练数据，CNN_DATA_BEGIN之前的行被忽略。
// 没有更多数据时返回io.EOF。
func (d *TrainingDecoder) Next() (*TrainingRecord, error) {
	return parseTrainingRecord(d.sc)
}

// ParseTrainingData 只解析流中的第一条训练数据，之后的内容会被预读丢弃。
// 需要连续读取时使用TrainingDecoder。
func ParseTrainingData(r io.Reader) (*TrainingRecord, error) {
	return NewTrainingDecoder(r).Next()
}

// ParseAllTrainingData 读取流中的全部训练数据
func ParseAllTrainingData(r io.Reader) ([]*TrainingRecord, error) {
	d := NewTrainingDecoder(r)
	var records []*TrainingRecord
	for {
		rec, err := d.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}

func parseTrainingRecord(sc *bufio.Scanner) (*TrainingRecord, error) {
	next := func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		return strings.TrimRight(sc.Text(), "\r"), true
	}

	for {
		line, ok := next()
		if !ok {
			if err := sc.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		if line == "CNN_DATA_BEGIN" {
			break
		}
	}

	rec := &TrainingRecord{}
	section := ""
	for {
		line, ok := next()
		if !ok {
			if err := sc.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: unexpected end of stream", ErrProtocol)
		}
		switch {
		case line == "CNN_DATA_END":
			if len(rec.Features) != rec.ValidFrames {
				return nil, fmt.Errorf("%w: %d frames, header says %d", ErrProtocol, len(rec.Features), rec.ValidFrames)
			}
			return rec, nil
		case line == "FEATURE_DATA_BEGIN", line == "RAW_WAVEFORM_BEGIN":
			section = line
		case line == "FEATURE_DATA_END", line == "RAW_WAVEFORM_END":
			section = ""
		case strings.HasPrefix(line, "FRAME:"):
		case strings.HasPrefix(line, "SPEECH_START:"):
			if err := headerInt(line, &rec.SpeechStart); err != nil {
				return nil, err
			}
		case strings.HasPrefix(line, "SPEECH_END:"):
			if err := headerInt(line, &rec.SpeechEnd); err != nil {
				return nil, err
			}
		case strings.HasPrefix(line, "VALID_FRAMES:"):
			if err := headerInt(line, &rec.ValidFrames); err != nil {
				return nil, err
			}
		case strings.HasPrefix(line, "FEATURE_DIM:"):
			if err := headerInt(line, &rec.FeatureDim); err != nil {
				return nil, err
			}
		case strings.HasPrefix(line, "SAMPLES:"):
			var n int
			if err := headerInt(line, &n); err != nil {
				return nil, err
			}
			rec.Samples = make([]float64, 0, n)
		case section == "FEATURE_DATA_BEGIN":
			row, err := splitFloats(line)
			if err != nil {
				return nil, err
			}
			if len(row) != rec.FeatureDim {
				return nil, fmt.Errorf("%w: frame has %d features, want %d", ErrProtocol, len(row), rec.FeatureDim)
			}
			rec.Features = append(rec.Features, row)
		case section == "RAW_WAVEFORM_BEGIN":
			samples, err := splitFloats(line)
			if err != nil {
				return nil, err
			}
			rec.Samples = append(rec.Samples, samples...)
		}
	}
}

func headerInt(line string, dst *int) error {
	_, value, _ := strings.Cut(line, ":")
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrProtocol, line)
	}
	*dst = v
	return nil
}

func splitFloats(line string) ([]float64, error) {
	if line == "" {
		return nil, nil
	}
	parts := strings.Split(line, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		out[i] = v
	}
	return out, nil
}

// EncodeResult 识别结果的JSON编码
func EncodeResult(r asr.Result) ([]byte, error) {
	return sonic.Marshal(r)
}
