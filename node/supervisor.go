package node

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/permaweb/scheduler-unit/log"
)

// ErrSubsystemUnhealthy is recorded against a watched subsystem's recovery
// entry when its health check fails and no failure is already pending.
var ErrSubsystemUnhealthy = errors.New("subsystem unhealthy")

// Supervisor polls subsystem health in the background and raises a
// gateway-down event when a watched subsystem degrades. A failure is
// recorded once and stays pending, so a persistently unhealthy subsystem
// raises no further event until a healthy check clears it; the backoff
// RecoveryPolicy returns is only logged.
type Supervisor struct {
	health   *HealthChecker
	monitor  *HealthMonitor
	recovery *RecoveryPolicy
	events   *EventBus
	logger   *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSupervisor creates a Supervisor that polls the given HealthChecker's
// subsystems every 15 seconds once Start is called.
func NewSupervisor(health *HealthChecker, events *EventBus, logger *log.Logger) *Supervisor {
	return &Supervisor{
		health:   health,
		monitor:  NewHealthMonitor(15 * time.Second),
		recovery: NewRecoveryPolicy(),
		events:   events,
		logger:   logger,
	}
}

// Watch registers a subsystem, named as it was registered on the
// HealthChecker, for recovery tracking under the given backoff policy.
func (s *Supervisor) Watch(subsystem string, cfg RecoveryConfig) error {
	if err := s.recovery.Register(subsystem, cfg); err != nil {
		return err
	}
	s.monitor.Register(subsystem, func() bool {
		report := s.health.CheckAll()
		for _, sub := range report.Subsystems {
			if sub.Name == subsystem {
				return sub.Status == StatusHealthy
			}
		}
		return false
	})
	return nil
}

// Start begins periodic polling of watched subsystems in the background.
func (s *Supervisor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go s.run(ctx, done)
}

func (s *Supervisor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.monitor.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Supervisor) tick() {
	for name, healthy := range s.monitor.CheckAll() {
		if healthy {
			s.recovery.RecordSuccess(name)
			continue
		}
		if s.recovery.ShouldRestart(name) {
			continue
		}
		backoff, err := s.recovery.RecordFailure(name, ErrSubsystemUnhealthy)
		if err != nil {
			s.logger.Error("subsystem recovery exhausted", "subsystem", name, "error", err)
			continue
		}
		s.logger.Warn("subsystem unhealthy", "subsystem", name, "retry_in", backoff)
		if s.events != nil {
			s.events.PublishAsync(EventGatewayDown, name)
		}
	}
}

// Stop halts background polling and closes the recovery policy.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	s.recovery.Close()
}
