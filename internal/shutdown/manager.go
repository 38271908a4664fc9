// Package shutdown turns interrupt signals into context cancellation and
// releases registered native resources when the run ends.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"bovw-classifier/internal/logger"
)

const closeTimeout = 10 * time.Second

type component struct {
	name   string
	closer io.Closer
}

type Manager struct {
	components []component
	logger     logger.Logger
	mu         sync.Mutex
	closed     bool
	signals    chan os.Signal
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewManager(log logger.Logger) *Manager {
	if log == nil {
		log = logger.NoOpLogger{}
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a resource to release on Close.
func (m *Manager) Register(name string, c io.Closer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.components = append(m.components, component{name: name, closer: c})
}

// Listen cancels the manager's context on SIGINT or SIGTERM. Work already
// persisted stays valid; the interrupted stage is lost.
func (m *Manager) Listen() {
	m.mu.Lock()
	if m.signals != nil {
		m.mu.Unlock()
		return
	}
	m.signals = make(chan os.Signal, 1)
	signals := m.signals
	m.mu.Unlock()

	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-signals:
			m.Interrupt(sig.String())
		case <-m.ctx.Done():
		}
	}()
}

// Interrupt cancels the run context.
func (m *Manager) Interrupt(reason string) {
	if m.ctx.Err() != nil {
		return
	}
	m.logger.Info("ShutdownManager", "interrupt received, cancelling run", map[string]interface{}{
		"reason": reason,
	})
	m.cancel()
}

// Close stops listening and releases the registered resources in reverse
// order. It is safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if m.signals != nil {
		signal.Stop(m.signals)
	}
	m.cancel()

	var errs []error
	for i := len(m.components) - 1; i >= 0; i-- {
		c := m.components[i]

		done := make(chan error, 1)
		go func() {
			done <- c.closer.Close()
		}()

		select {
		case err := <-done:
			if err != nil {
				m.logger.Error("ShutdownManager", err, map[string]interface{}{
					"component": c.name,
				})
				errs = append(errs, fmt.Errorf("failed to close %s: %w", c.name, err))
			}
		case <-time.After(closeTimeout):
			m.logger.Warning("ShutdownManager", "component close timeout", map[string]interface{}{
				"component": c.name,
			})
		}
	}

	m.logger.Debug("ShutdownManager", "resources released", map[string]interface{}{
		"components": len(m.components),
	})
	return errors.Join(errs...)
}

func (m *Manager) Context() context.Context {
	return m.ctx
}
