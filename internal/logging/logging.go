package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a JSON production logger in release mode and a coloured
// console logger otherwise.
func New(mode string) (*zap.Logger, error) {
	var config zap.Config

	if mode == "release" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	return config.Build()
}

// Sync flushes buffered entries, ignoring errors from unsyncable outputs
// such as a terminal.
func Sync(log *zap.Logger) {
	if log != nil {
		_ = log.Sync()
	}
}
