package definition

import (
	"os"

	"github.com/sirupsen/logrus"
)

// LogrusLogger adapts a *logrus.Logger to types.Logger. logrus is the
// teacher's own indirect dependency (pulled in through
// github.com/prometheus/common); this module promotes it to a direct,
// structured logger used by cmd/worker in place of DefaultLogger.
type LogrusLogger struct {
	entry *logrus.Entry
	debug bool
}

// NewLogrusLogger builds a LogrusLogger writing JSON lines to stderr,
// tagged with the worker's authority/id for multi-worker deployments.
func NewLogrusLogger(authority string, worker uint32) *LogrusLogger {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.JSONFormatter{})
	entry := base.WithFields(logrus.Fields{
		"authority": authority,
		"worker":    worker,
	})
	return &LogrusLogger{entry: entry}
}

func (l *LogrusLogger) Info(v ...interface{})                 { l.entry.Info(v...) }
func (l *LogrusLogger) Infof(f string, v ...interface{})      { l.entry.Infof(f, v...) }
func (l *LogrusLogger) Warn(v ...interface{})                 { l.entry.Warn(v...) }
func (l *LogrusLogger) Warnf(f string, v ...interface{})      { l.entry.Warnf(f, v...) }
func (l *LogrusLogger) Error(v ...interface{})                { l.entry.Error(v...) }
func (l *LogrusLogger) Errorf(f string, v ...interface{})     { l.entry.Errorf(f, v...) }
func (l *LogrusLogger) Fatal(v ...interface{})                { l.entry.Fatal(v...) }
func (l *LogrusLogger) Fatalf(f string, v ...interface{})     { l.entry.Fatalf(f, v...) }
func (l *LogrusLogger) Panic(v ...interface{})                { l.entry.Panic(v...) }
func (l *LogrusLogger) Panicf(f string, v ...interface{})     { l.entry.Panicf(f, v...) }

func (l *LogrusLogger) Debug(v ...interface{}) {
	if l.debug {
		l.entry.Debug(v...)
	}
}

func (l *LogrusLogger) Debugf(f string, v ...interface{}) {
	if l.debug {
		l.entry.Debugf(f, v...)
	}
}

func (l *LogrusLogger) ToggleDebug(value bool) bool {
	l.debug = value
	if value {
		l.entry.Logger.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.Logger.SetLevel(logrus.InfoLevel)
	}
	return l.debug
}
