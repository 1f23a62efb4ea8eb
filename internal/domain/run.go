package domain

// RunStatus lifecycle state of a backtest run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether the run has reached a final state.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// DataSource records which tier of the data fallback chain produced
// the bars a run was replayed against. Results built on downgraded
// data must never be conflated with validated market data.
type DataSource string

const (
	// DataSourceLive bars fetched from the external source.
	DataSourceLive DataSource = "LIVE"
	// DataSourceCachedStale bars served from an expired cache entry.
	DataSourceCachedStale DataSource = "CACHED_STALE"
	// DataSourceSynthetic deterministically generated fallback bars.
	DataSourceSynthetic DataSource = "SYNTHETIC"
)

// rank orders tiers from most to least trustworthy.
func (d DataSource) rank() int {
	switch d {
	case DataSourceLive:
		return 0
	case DataSourceCachedStale:
		return 1
	case DataSourceSynthetic:
		return 2
	}
	return 3
}

// Worse returns the less trustworthy of the two tiers. A run touching
// several symbols carries the worst tier any of them degraded to.
func (d DataSource) Worse(other DataSource) DataSource {
	if other.rank() > d.rank() {
		return other
	}
	return d
}
