package main

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/stanley_straddle/internal/config"
)

func TestNewLoggerLevel(t *testing.T) {
	cfg := &config.Config{}
	cfg.Environment.LogLevel = "debug"

	logger := newLogger(cfg)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestNewLoggerBadLevelDefaultsToInfo(t *testing.T) {
	cfg := &config.Config{}
	cfg.Environment.LogLevel = "chatty"

	logger := newLogger(cfg)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestNewLoggerWithLogFile(t *testing.T) {
	cfg := &config.Config{}
	cfg.Environment.LogLevel = "info"
	cfg.Environment.LogFile = filepath.Join(t.TempDir(), "session.log")

	logger := newLogger(cfg)
	require.NotNil(t, logger.Out)
}

func TestRunRejectsMissingConfig(t *testing.T) {
	err := run(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
