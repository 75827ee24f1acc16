package warmer

import "go.uber.org/zap"

// cronLogger routes robfig/cron logs through zap.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw("[cron] "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw("[cron] "+msg, append(keysAndValues, "error", err)...)
}
