package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

const defaultCheckTimeout = 5 * time.Second

// ComponentHealth represents the health of a single component
type ComponentHealth struct {
	Name      string                 `json:"name"`
	Status    HealthStatus           `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Duration  time.Duration          `json:"duration"`
}

// SystemHealth represents the overall system health
type SystemHealth struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Uptime     string                     `json:"uptime"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
}

// HealthChecker interface for health checking
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) ComponentHealth
}

// HealthService manages health checks for the system
type HealthService interface {
	RegisterChecker(checker HealthChecker)
	CheckHealth(ctx context.Context) SystemHealth
	CheckComponent(ctx context.Context, name string) (ComponentHealth, error)
}

// DefaultHealthService implements HealthService
type DefaultHealthService struct {
	mu        sync.RWMutex
	checkers  map[string]HealthChecker
	startTime time.Time
	version   string
	timeout   time.Duration
	logger    Logger
}

// NewHealthService creates a new health service
func NewHealthService(version string, logger Logger) *DefaultHealthService {
	if logger == nil {
		logger = NewDefaultLogger()
	}

	return &DefaultHealthService{
		checkers:  make(map[string]HealthChecker),
		startTime: time.Now(),
		version:   version,
		timeout:   defaultCheckTimeout,
		logger:    logger,
	}
}

// RegisterChecker registers a health checker
func (h *DefaultHealthService) RegisterChecker(checker HealthChecker) {
	h.mu.Lock()
	h.checkers[checker.Name()] = checker
	h.mu.Unlock()
	h.logger.Debug("Health checker registered", String("component", checker.Name()))
}

// CheckHealth performs health checks on all registered components
func (h *DefaultHealthService) CheckHealth(ctx context.Context) SystemHealth {
	h.mu.RLock()
	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	h.mu.RUnlock()
	sort.Strings(names)

	components := make(map[string]ComponentHealth, len(names))
	overallStatus := HealthStatusHealthy
	for _, name := range names {
		h.mu.RLock()
		checker := h.checkers[name]
		h.mu.RUnlock()

		componentHealth := h.checkComponentWithTimeout(ctx, checker)
		components[name] = componentHealth

		switch componentHealth.Status {
		case HealthStatusUnhealthy:
			overallStatus = HealthStatusUnhealthy
		case HealthStatusDegraded:
			if overallStatus == HealthStatusHealthy {
				overallStatus = HealthStatusDegraded
			}
		}
	}

	if overallStatus != HealthStatusHealthy {
		h.logger.Warn("Health check failed",
			String("status", string(overallStatus)),
			Int("components_checked", len(components)))
	}

	return SystemHealth{
		Status:     overallStatus,
		Timestamp:  time.Now(),
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Version:    h.version,
		Components: components,
	}
}

// CheckComponent checks the health of a specific component
func (h *DefaultHealthService) CheckComponent(ctx context.Context, name string) (ComponentHealth, error) {
	h.mu.RLock()
	checker, exists := h.checkers[name]
	h.mu.RUnlock()
	if !exists {
		return ComponentHealth{}, fmt.Errorf("component %s not found", name)
	}

	return h.checkComponentWithTimeout(ctx, checker), nil
}

func (h *DefaultHealthService) checkComponentWithTimeout(ctx context.Context, checker HealthChecker) ComponentHealth {
	start := time.Now()

	timeoutCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	resultChan := make(chan ComponentHealth, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultChan <- ComponentHealth{
					Name:      checker.Name(),
					Status:    HealthStatusUnhealthy,
					Message:   fmt.Sprintf("Health check panicked: %v", r),
					Timestamp: time.Now(),
					Duration:  time.Since(start),
				}
			}
		}()

		result := checker.Check(timeoutCtx)
		result.Duration = time.Since(start)
		resultChan <- result
	}()

	select {
	case result := <-resultChan:
		return result
	case <-timeoutCtx.Done():
		return ComponentHealth{
			Name:      checker.Name(),
			Status:    HealthStatusUnhealthy,
			Message:   "Health check timed out",
			Timestamp: time.Now(),
			Duration:  h.timeout,
		}
	}
}

// Pinger is anything that can report its own reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreHealthChecker checks the node store backend
type StoreHealthChecker struct {
	name   string
	driver string
	store  Pinger
}

// NewStoreHealthChecker creates a store health checker
func NewStoreHealthChecker(driver string, store Pinger) *StoreHealthChecker {
	return &StoreHealthChecker{
		name:   "store",
		driver: driver,
		store:  store,
	}
}

// Name returns the checker name
func (s *StoreHealthChecker) Name() string {
	return s.name
}

// Check pings the store
func (s *StoreHealthChecker) Check(ctx context.Context) ComponentHealth {
	health := ComponentHealth{
		Name:      s.name,
		Timestamp: time.Now(),
		Details:   map[string]interface{}{"driver": s.driver},
	}

	if err := s.store.Ping(ctx); err != nil {
		health.Status = HealthStatusUnhealthy
		health.Message = err.Error()
	} else {
		health.Status = HealthStatusHealthy
		health.Message = "Store reachable"
	}
	return health
}
