package sample

import (
	"go.uber.org/zap"

	"github.com/gtpkit/gtpengine/gtpengine"
	"github.com/gtpkit/gtpengine/internal/config"
)

// NewEngine builds an engine with the sample commands registered and
// pondering and interrupts enabled as configured.
func NewEngine(cfg *config.Config, logger *zap.Logger) (*gtpengine.Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := gtpengine.NewEngine(gtpengine.Config{
		Name:    cfg.Name,
		Version: cfg.Version,
		Logger:  logger,
	})

	s := New(Options{
		Workers:    cfg.Sample.Workers,
		PonderStep: cfg.Sample.PonderStep,
		Logger:     logger.Named("sample"),
	})
	if err := s.Register(e); err != nil {
		e.Close()
		return nil, err
	}
	if cfg.Ponder {
		e.SetPonderer(s)
	}
	if cfg.Interrupt {
		e.SetInterrupter(s)
	}
	logger.Debug("Engine ready",
		zap.String("name", cfg.Name),
		zap.Bool("ponder", cfg.Ponder),
		zap.Bool("interrupt", cfg.Interrupt),
		zap.Int("workers", cfg.Sample.Workers))
	return e, nil
}
