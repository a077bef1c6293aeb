package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

// testAppender writes entries through tb.Log so each line is attributed to the test that
// produced it, including parallel subtests.
type testAppender struct {
	tb testing.TB
}

// NewTestAppender returns an appender writing console formatted lines to tb.
func NewTestAppender(tb testing.TB) Appender {
	return &testAppender{tb: tb}
}

func (a *testAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	a.tb.Helper()
	line, err := formatEntry(entry, fields)
	a.tb.Log(line)
	return err
}

func (a *testAppender) Sync() error {
	return nil
}
