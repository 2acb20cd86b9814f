package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	log "github.com/sirupsen/logrus"
)

func init() {
	// 默认输出由应用程序决定，这里只设置格式
	log.SetFormatter(Formatter(false))
}

// Options 日志初始化参数，对应配置文件的log节
type Options struct {
	Path   string `mapstructure:"path" json:"path"`
	File   string `mapstructure:"file" json:"file"`
	Level  string `mapstructure:"level" json:"level"`
	MaxAge int    `mapstructure:"max_age" json:"max_age"`
	Stdout bool   `mapstructure:"stdout" json:"stdout"`
}

// Setup 按配置初始化日志：按天轮转写文件，可选同时输出到标准输出。
// File为空时只输出到标准输出。
func Setup(opts Options) error {
	level, err := log.ParseLevel(opts.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetReportCaller(false)

	if err := setupOutput(opts); err != nil {
		return err
	}
	InstallZap(log.StandardLogger().Out, level)
	return nil
}

func setupOutput(opts Options) error {
	if opts.File == "" {
		UseStdout()
		return nil
	}

	logPath := filepath.Join(opts.Path, opts.File)
	if !filepath.IsAbs(logPath) {
		binPath, _ := os.Executable()
		logPath = filepath.Join(filepath.Dir(binPath), logPath)
	}
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = 7
	}
	// 每天轮转一次，保留最近maxAge个文件
	writer, err := rotatelogs.New(
		logPath+".%Y%m%d",
		rotatelogs.WithLinkName(logPath),
		rotatelogs.WithRotationCount(uint(maxAge)),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("init log writer: %w", err)
	}

	if opts.Stdout {
		log.SetOutput(io.MultiWriter(writer, os.Stdout))
		log.SetFormatter(Formatter(true))
		return nil
	}
	log.SetOutput(writer)
	log.SetFormatter(Formatter(false))
	return nil
}

// SetOutput 设置日志输出目标
func SetOutput(out io.Writer) {
	log.SetOutput(out)
}

// SetLevel 设置日志级别
func SetLevel(level log.Level) {
	log.SetLevel(level)
}

// UseStdout 使用标准输出
func UseStdout() {
	log.SetOutput(os.Stdout)
	log.SetFormatter(Formatter(true))
}

// getCaller 跳过logger包装层，返回实际调用位置
// 调用栈：用户代码 -> logger.Info -> addCallerField -> getCaller
func getCaller() (string, int) {
	_, file, line, ok := runtime.Caller(3)
	if !ok {
		return "unknown", 0
	}
	return filepath.Base(file), line
}

func addCallerField() *log.Entry {
	file, line := getCaller()
	return log.WithField("caller", fmt.Sprintf("%s:%d", file, line))
}

func Info(args ...interface{}) {
	addCallerField().Info(args...)
}

func Error(args ...interface{}) {
	addCallerField().Error(args...)
}

func Debug(args ...interface{}) {
	addCallerField().Debug(args...)
}

func Warn(args ...interface{}) {
	addCallerField().Warn(args...)
}

func Fatal(args ...interface{}) {
	addCallerField().Fatal(args...)
}

func Infof(format string, args ...interface{}) {
	addCallerField().Infof(format, args...)
}

func Errorf(format string, args ...interface{}) {
	addCallerField().Errorf(format, args...)
}

func Debugf(format string, args ...interface{}) {
	addCallerField().Debugf(format, args...)
}

func Warnf(format string, args ...interface{}) {
	addCallerField().Warnf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	addCallerField().Fatalf(format, args...)
}

// Log 以key/value对构造带字段的日志条目，例如
// Log("cycle", id, "label", label).Info("识别完成")
func Log(args ...interface{}) *log.Entry {
	fields := log.Fields{}
	lenArgs := len(args)
	for i := 0; i < lenArgs; i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		if i+1 < lenArgs {
			fields[key] = args[i+1]
			continue
		}
		fields[key] = ""
	}

	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file = "unknown"
		line = 0
	}
	fields["caller"] = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	return log.WithFields(fields)
}

func Formatter(isConsole bool) *nested.Formatter {
	return &nested.Formatter{
		FieldsOrder:      []string{"time", "level", "caller", "cycle", "msg"},
		HideKeys:         true,
		TimestampFormat:  "2006-01-02 15:04:05.000",
		CallerFirst:      true,
		NoUppercaseLevel: true,
		ShowFullLevel:    true,
		NoColors:         !isConsole,
		// 使用自定义的caller字段
		CustomCallerFormatter: func(frame *runtime.Frame) string {
			return ""
		},
	}
}
