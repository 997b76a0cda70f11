package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gtpkit/gtpengine/gtpengine"
	"github.com/gtpkit/gtpengine/internal/config"
	"github.com/gtpkit/gtpengine/internal/sample"
)

var (
	logger = newLibraryLogger()
	host   = gtpengine.NewHost(logger)
)

// newLibraryLogger logs to standard error only if GTPENGINE_LOG_LEVEL is
// set; the embedding program owns the process output otherwise.
func newLibraryLogger() *zap.Logger {
	name := os.Getenv("GTPENGINE_LOG_LEVEL")
	if name == "" {
		return zap.NewNop()
	}
	level, err := zapcore.ParseLevel(name)
	if err != nil {
		return zap.NewNop()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// createEngine loads the settings and creates an engine in the host. A
// non-empty setupPath replaces the setup file of the settings.
func createEngine(settingsPath, setupPath string) (string, error) {
	cfg, err := config.Load(settingsPath)
	if err != nil {
		return "", err
	}
	if setupPath != "" {
		cfg.SetupFile = setupPath
	}
	return host.Create(gtpengine.HostConfig{
		NewEngine: func() (*gtpengine.Engine, error) {
			return sample.NewEngine(cfg, logger)
		},
		SetupFile: cfg.SetupFile,
	})
}

// processCommand executes line on the engine behind handle. It never
// panics.
func processCommand(handle, line string) (ok bool, response string) {
	defer func() {
		if r := recover(); r != nil {
			ok, response = false, fmt.Sprintf("fatal error: %v", r)
		}
	}()
	return host.Process(handle, line)
}

func freeEngine(handle string) {
	if err := host.Destroy(handle); err != nil {
		logger.Warn("Failed to destroy engine",
			zap.String("handle", handle),
			zap.Error(err))
	}
}

// main is required by -buildmode=c-shared and never runs.
func main() {}
