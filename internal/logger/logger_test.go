package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

type LoggerTestSuite struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}

func (suite *LoggerTestSuite) TestNewLogger() {
	logger, err := NewLogger()
	suite.NoError(err)
	suite.NotNil(logger)
	suite.NotNil(logger.Logger)
}

func (suite *LoggerTestSuite) TestLoggerSyncNilLogger() {
	logger := &Logger{Logger: nil}

	err := logger.Sync()
	suite.NoError(err)
}

func (suite *LoggerTestSuite) TestLoggerWritesToFile() {
	path := filepath.Join(suite.T().TempDir(), "logs", "bot.log")

	logger, err := NewLoggerWithConfig(Config{Level: "debug", File: path})
	suite.Require().NoError(err)

	logger.Info("order submitted")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	suite.Require().NoError(err)
	suite.Contains(string(data), "order submitted")
}

func (suite *LoggerTestSuite) TestInvalidLevel() {
	_, err := NewLoggerWithConfig(Config{Level: "loud", File: ""})
	suite.Error(err)
}

func (suite *LoggerTestSuite) TestNopLogger() {
	logger := NewNopLogger()
	logger.Warn("discarded")
	suite.NotNil(logger.Logger)
}
