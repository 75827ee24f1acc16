package logging

import (
	"strings"

	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger from LOG_LEVEL and LOG_ENCODING. Every entry carries the
// service name so query and warmer logs can share a sink.
func New(service string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = utils.Env("LOG_ENCODING", "json")
	cfg.Level, cfg.Development = level(utils.Env("LOG_LEVEL", "debug"))

	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if service != "" {
		cfg.InitialFields = map[string]interface{}{"service": service}
	}

	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l, nil
}

func level(raw string) (zap.AtomicLevel, bool) {
	switch strings.ToLower(raw) {
	case "debug":
		return zap.NewAtomicLevelAt(zap.DebugLevel), true
	case "warn":
		return zap.NewAtomicLevelAt(zap.WarnLevel), false
	case "error":
		return zap.NewAtomicLevelAt(zap.ErrorLevel), false
	default:
		return zap.NewAtomicLevelAt(zap.InfoLevel), false
	}
}
