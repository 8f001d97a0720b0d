// internal/common/logger/loggertest/loggertest.go

// Package loggertest provides a Logger for tests, kept out of the logger
// package so production code never links against the testing package.
package loggertest

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/dineshratn/sos-app-sub001/internal/common/logger"
)

// New returns a Logger that writes through t.Log.
func New(t testing.TB) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}
