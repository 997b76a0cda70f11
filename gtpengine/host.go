package gtpengine

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EngineFactory builds a fully registered engine.
type EngineFactory func() (*Engine, error)

// HostConfig describes an engine to create in a Host.
type HostConfig struct {
	// NewEngine builds the engine. Required.
	NewEngine EngineFactory

	// SetupFile, if set, is a command file executed before Create returns.
	SetupFile string
}

// Host owns engines on behalf of an embedding program that refers to them
// by opaque handles. Each engine executes one command at a time; different
// engines may be used concurrently.
type Host struct {
	logger *zap.Logger

	mu      sync.Mutex
	engines map[string]*hostedEngine
}

type hostedEngine struct {
	mu     sync.Mutex
	engine *Engine
}

// NewHost creates an empty host.
func NewHost(logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{
		logger:  logger,
		engines: make(map[string]*hostedEngine),
	}
}

// Create builds an engine, runs its setup file and returns its handle.
// Setup failures are returned and leave nothing behind.
func (h *Host) Create(cfg HostConfig) (handle string, err error) {
	if cfg.NewEngine == nil {
		return "", errors.New("no engine factory")
	}
	defer func() {
		if r := recover(); r != nil {
			handle, err = "", fmt.Errorf("creating engine: %v", r)
		}
	}()

	engine, err := cfg.NewEngine()
	if err != nil {
		return "", fmt.Errorf("creating engine: %w", err)
	}
	if cfg.SetupFile != "" {
		if err := engine.ExecuteFile(cfg.SetupFile, nil); err != nil {
			engine.Close()
			return "", fmt.Errorf("setting up engine: %w", err)
		}
	}

	handle = uuid.NewString()
	h.mu.Lock()
	h.engines[handle] = &hostedEngine{engine: engine}
	h.mu.Unlock()

	h.logger.Debug("Engine created",
		zap.String("handle", handle),
		zap.String("name", engine.Name()))
	return handle, nil
}

// Process executes one command line on the engine behind handle. It never
// panics; an unknown handle is reported as a failure.
func (h *Host) Process(handle, line string) (bool, string) {
	he, ok := h.lookup(handle)
	if !ok {
		return false, ErrUnknownHandle.Error()
	}
	he.mu.Lock()
	defer he.mu.Unlock()
	if he.engine == nil {
		return false, ErrUnknownHandle.Error()
	}
	return he.engine.ExecuteCommand(line)
}

// Destroy releases the engine behind handle. It waits for a command that
// is being processed on that engine.
func (h *Host) Destroy(handle string) error {
	h.mu.Lock()
	he, ok := h.engines[handle]
	delete(h.engines, handle)
	h.mu.Unlock()
	if !ok {
		return ErrUnknownHandle
	}

	he.mu.Lock()
	defer he.mu.Unlock()
	engine := he.engine
	he.engine = nil
	h.logger.Debug("Engine destroyed", zap.String("handle", handle))
	return engine.Close()
}

// Handles returns the handles of all live engines in lexicographic order.
func (h *Host) Handles() []string {
	h.mu.Lock()
	handles := make([]string, 0, len(h.engines))
	for handle := range h.engines {
		handles = append(handles, handle)
	}
	h.mu.Unlock()
	sort.Strings(handles)
	return handles
}

// Close destroys every engine.
func (h *Host) Close() error {
	var errs []error
	for _, handle := range h.Handles() {
		if err := h.Destroy(handle); err != nil && !errors.Is(err, ErrUnknownHandle) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *Host) lookup(handle string) (*hostedEngine, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	he, ok := h.engines[handle]
	return he, ok
}
