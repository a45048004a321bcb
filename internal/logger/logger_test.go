package logger

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zapcore"
)

type LoggerTestSuite struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}

func (s *LoggerTestSuite) TestNewDefaultsToInfo() {
	l, err := New(Config{})
	s.Require().NoError(err)
	s.True(l.Core().Enabled(zapcore.InfoLevel))
	s.False(l.Core().Enabled(zapcore.DebugLevel))
}

func (s *LoggerTestSuite) TestNewDevelopmentDebug() {
	l, err := New(Config{Level: "debug", Development: true})
	s.Require().NoError(err)
	s.True(l.Core().Enabled(zapcore.DebugLevel))
	l.Debug("debug message")
	Sync(l)
}

func (s *LoggerTestSuite) TestNewRejectsUnknownLevel() {
	_, err := New(Config{Level: "loud"})
	s.Error(err)
}

func (s *LoggerTestSuite) TestSyncNil() {
	s.NotPanics(func() { Sync(nil) })
}
