package search

import (
	"time"

	"github.com/poiesic/knowit/core"
)

// Monitor provides hooks to observe the search process.
// Implement this interface to track query stages and results.
type Monitor interface {
	// OnSearchStart is called before the query text is embedded.
	OnSearchStart(query string)

	// OnRelaxedRetry is called when the strict score floor returned
	// nothing and the query is retried with the floor dropped to zero.
	OnRelaxedRetry(query string)

	// OnSearchComplete is called with the final result set.
	OnSearchComplete(query string, results []core.ScoredRecord, elapsed time.Duration)
}

// noopMonitor is a no-op implementation of Monitor.
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) OnSearchStart(_ string)                                      {}
func (n *noopMonitor) OnRelaxedRetry(_ string)                                     {}
func (n *noopMonitor) OnSearchComplete(_ string, _ []core.ScoredRecord, _ time.Duration) {}
