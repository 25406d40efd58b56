// Package circuitbreaker stops calling a failing dependency for a while so
// request paths do not block on it.
package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

type Config struct {
	Name        string
	MaxFailures int
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
	// MaxRequests bounds the probes allowed while half-open.
	MaxRequests   int
	OnStateChange func(name string, from State, to State)
}

type Metrics struct {
	Name            string    `json:"name"`
	State           string    `json:"state"`
	Failures        int       `json:"failures"`
	TotalRequests   int64     `json:"total_requests"`
	TotalFailures   int64     `json:"total_failures"`
	TotalSuccesses  int64     `json:"total_successes"`
	TotalRejected   int64     `json:"total_rejected"`
	StateChanges    int64     `json:"state_changes"`
	LastFailure     time.Time `json:"last_failure"`
	LastStateChange time.Time `json:"last_state_change"`
}

type CircuitBreaker struct {
	cfg    Config
	logger *logrus.Logger
	now    func() time.Time

	mutex        sync.Mutex
	state        State
	failures     int
	probes       int
	lastFailTime time.Time
	metrics      Metrics
}

func New(cfg Config, logger *logrus.Logger) *CircuitBreaker {
	if cfg.Name == "" {
		cfg.Name = "unnamed"
	}
	if cfg.MaxFailures <= 0 {
		logger.WithFields(logrus.Fields{
			"circuit_breaker": cfg.Name,
			"invalid_value":   cfg.MaxFailures,
			"default_value":   5,
		}).Warn("Invalid MaxFailures value, using default")
		cfg.MaxFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Timeout > 10*time.Minute {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 1
	}

	return &CircuitBreaker{
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		state:   StateClosed,
		metrics: Metrics{Name: cfg.Name},
	}
}

// Execute runs fn unless the breaker is open. fn runs without the lock held.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}

	err := fn()

	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	if err != nil {
		cb.onFailure()
		return err
	}
	cb.onSuccess()
	return nil
}

func (cb *CircuitBreaker) before() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailTime) <= cb.cfg.Timeout {
			cb.metrics.TotalRejected++
			return ErrCircuitBreakerOpen
		}
		cb.setState(StateHalfOpen)
	}
	if cb.state == StateHalfOpen {
		if cb.probes >= cb.cfg.MaxRequests {
			cb.metrics.TotalRejected++
			return ErrCircuitBreakerOpen
		}
		cb.probes++
	}
	cb.metrics.TotalRequests++
	return nil
}

func (cb *CircuitBreaker) onSuccess() {
	cb.metrics.TotalSuccesses++
	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.setState(StateClosed)
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.metrics.TotalFailures++
	cb.failures++
	cb.lastFailTime = cb.now()
	cb.metrics.LastFailure = cb.lastFailTime

	if cb.state == StateHalfOpen || cb.failures >= cb.cfg.MaxFailures {
		cb.setState(StateOpen)
	}
}

// setState must be called with the mutex held.
func (cb *CircuitBreaker) setState(next State) {
	if cb.state == next {
		return
	}
	prev := cb.state
	cb.state = next
	cb.probes = 0
	cb.metrics.StateChanges++
	cb.metrics.LastStateChange = cb.now()

	cb.logger.WithFields(logrus.Fields{
		"circuit_breaker": cb.cfg.Name,
		"from_state":      prev.String(),
		"to_state":        next.String(),
	}).Info("Circuit breaker state changed")

	if cb.cfg.OnStateChange != nil {
		go cb.notify(prev, next)
	}
}

func (cb *CircuitBreaker) notify(from, to State) {
	defer func() {
		if r := recover(); r != nil {
			cb.logger.WithFields(logrus.Fields{
				"circuit_breaker": cb.cfg.Name,
				"panic":           r,
			}).Error("Circuit breaker state change callback panicked")
		}
	}()
	cb.cfg.OnStateChange(cb.cfg.Name, from, to)
}

func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Metrics() Metrics {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	m := cb.metrics
	m.State = cb.state.String()
	m.Failures = cb.failures
	return m
}

func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.setState(StateClosed)
	cb.failures = 0
	cb.lastFailTime = time.Time{}
}

func (cb *CircuitBreaker) String() string {
	m := cb.Metrics()
	return fmt.Sprintf("CircuitBreaker(name=%s, state=%s, failures=%d/%d)",
		m.Name, m.State, m.Failures, cb.cfg.MaxFailures)
}
