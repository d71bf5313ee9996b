package monitor

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrSessionActive is returned when a start is requested while a session runs
var ErrSessionActive = errors.New("monitoring session already active")

// LoopFactory builds a fresh loop for each monitoring session
type LoopFactory func() (*Loop, error)

// Supervisor owns at most one running Loop and lets the dashboard start and
// stop monitoring sessions. Start and Stop are serialized by mu; readers
// only take currentMu so they never wait for a stop in progress.
type Supervisor struct {
	mu      sync.Mutex
	factory LoopFactory
	logger  *zap.Logger

	currentMu sync.RWMutex
	current   *Loop
}

// NewSupervisor creates a supervisor with no active session
func NewSupervisor(factory LoopFactory, logger *zap.Logger) *Supervisor {
	return &Supervisor{factory: factory, logger: logger}
}

// Start opens a new monitoring session
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if loop := s.loop(); loop != nil && loop.State() == StateRunning {
		return ErrSessionActive
	}

	loop, err := s.factory()
	if err != nil {
		return err
	}
	if err := loop.Start(ctx); err != nil {
		s.logger.Error("Failed to start monitoring", zap.Error(err))
		return err
	}

	s.currentMu.Lock()
	s.current = loop
	s.currentMu.Unlock()

	s.logger.Info("Monitoring session started")
	return nil
}

// Stop ends the active session, if any
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	loop := s.loop()
	if loop == nil || loop.State() != StateRunning {
		return
	}
	loop.Stop()
	s.logger.Info("Monitoring session stopped")
}

// State returns the state of the latest session, or StateIdle before the
// first one.
func (s *Supervisor) State() State {
	loop := s.loop()
	if loop == nil {
		return StateIdle
	}
	return loop.State()
}

// Running reports whether a session is active
func (s *Supervisor) Running() bool {
	return s.State() == StateRunning
}

// Stalled reports whether the active session gave up reconnecting
func (s *Supervisor) Stalled() bool {
	loop := s.loop()
	return loop != nil && loop.Stalled()
}

func (s *Supervisor) loop() *Loop {
	s.currentMu.RLock()
	defer s.currentMu.RUnlock()
	return s.current
}
