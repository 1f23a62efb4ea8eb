package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/retracehq/retrace/internal/domain"
	"github.com/retracehq/retrace/internal/strategy"
)

// StatusInfo answers a status query for one run.
type StatusInfo struct {
	Status      domain.RunStatus
	ProgressPct float64
	Reason      string
}

type run struct {
	status   domain.RunStatus
	progress *Progress
	result   *Result
	reason   string
	cancel   context.CancelFunc
}

// Manager tracks concurrently executing runs and serves status,
// results and cancellation queries. Each run owns its own wallet; the
// only state shared between runs is the data provider's cache.
type Manager struct {
	engine      *Engine
	logger      *zap.Logger
	newStrategy func(name string, params map[string]float64) (strategy.Strategy, error)

	mu   sync.RWMutex
	runs map[string]*run
	wg   sync.WaitGroup
}

// NewManager creates a run manager on top of the engine.
func NewManager(engine *Engine, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		engine:      engine,
		logger:      logger,
		newStrategy: strategy.New,
		runs:        make(map[string]*run),
	}
}

// Start validates the config, builds the strategy and launches the
// replay in the background. Invalid configs fail here, before any data
// is fetched.
func (m *Manager) Start(ctx context.Context, cfg Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	strat, err := m.newStrategy(cfg.StrategyName, cfg.StrategyParams)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		status:   domain.RunStatusPending,
		progress: &Progress{},
		cancel:   cancel,
	}

	m.mu.Lock()
	m.runs[id] = r
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()

		m.setStatus(id, domain.RunStatusRunning, "")
		m.logger.Info("run started", zap.String("run_id", id), zap.String("strategy", cfg.StrategyName))

		result, err := m.engine.Run(runCtx, cfg, strat, r.progress)
		switch {
		case errors.Is(err, ErrCancelled) || (err != nil && errors.Is(err, context.Canceled)):
			m.setStatus(id, domain.RunStatusCancelled, "cancelled")
		case err != nil:
			m.setStatus(id, domain.RunStatusFailed, err.Error())
			m.logger.Error("run failed", zap.String("run_id", id), zap.Error(err))
		default:
			m.mu.Lock()
			r.status = domain.RunStatusCompleted
			r.result = result
			m.mu.Unlock()
		}
	}()

	return id, nil
}

// Status answers a status query for the run.
func (m *Manager) Status(id string) (StatusInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.runs[id]
	if !ok {
		return StatusInfo{}, errors.Errorf("unknown run: %s", id)
	}
	return StatusInfo{
		Status:      r.status,
		ProgressPct: r.progress.Pct(),
		Reason:      r.reason,
	}, nil
}

// Results returns the final result of a completed run. Failed and
// cancelled runs have no result to return.
func (m *Manager) Results(id string) (*Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.runs[id]
	if !ok {
		return nil, errors.Errorf("unknown run: %s", id)
	}
	switch r.status {
	case domain.RunStatusCompleted:
		return r.result, nil
	case domain.RunStatusFailed:
		return nil, errors.Errorf("run failed: %s", r.reason)
	case domain.RunStatusCancelled:
		return nil, errors.New("run was cancelled, result discarded")
	default:
		return nil, errors.Errorf("run not finished: %s", r.status)
	}
}

// Cancel requests cooperative cancellation of a running replay.
func (m *Manager) Cancel(id string) error {
	m.mu.RLock()
	r, ok := m.runs[id]
	m.mu.RUnlock()

	if !ok {
		return errors.Errorf("unknown run: %s", id)
	}
	r.progress.Cancel()
	r.cancel()
	return nil
}

// Wait blocks until every launched run reaches a terminal state.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) setStatus(id string, status domain.RunStatus, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runs[id]; ok {
		r.status = status
		r.reason = reason
	}
}
