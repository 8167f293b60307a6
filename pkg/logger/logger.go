package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type options struct {
	file string
}

// Option 日志选项
type Option func(*options)

// WithFile 同时写入按大小轮转的日志文件
func WithFile(path string) Option {
	return func(o *options) {
		o.file = path
	}
}

// NewLogger 创建 zap 日志，level 无法识别时使用 info
func NewLogger(level string, opts ...Option) (*zap.Logger, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewJSONEncoder(encoderConfig)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), lvl),
	}

	if o.file != "" {
		rotator := &lumberjack.Logger{
			Filename:   o.file,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     30, // 天
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), lvl))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}
