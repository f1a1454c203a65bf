package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var L *zap.Logger

func init() {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "ts"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Level = zap.NewAtomicLevelAt(levelFromEnv())
	var err error
	L, err = config.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
}

// LOG_LEVEL 未設定或無法解析時使用 info
func levelFromEnv() zapcore.Level {
	level, err := zapcore.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// WithComponent 回傳帶有 component 欄位的 logger，供 MQ、handler、service 等使用
func WithComponent(component string) *zap.Logger {
	return L.With(zap.String("component", component))
}

// Sync 在程式結束前把緩衝的 log 寫出
func Sync() {
	_ = L.Sync()
}
