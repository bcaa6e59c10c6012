package llm

import (
	"context"
	"sort"
	"sync"
)

// Metrics accumulates backend call counters for one run. A nil *Metrics
// ignores every update.
type Metrics struct {
	mu           sync.Mutex
	calls        int
	failures     int
	retries      int
	inputTokens  int64
	outputTokens int64
	byPurpose    map[string]int
}

// Snapshot is a copy of the counters at one point in time.
type Snapshot struct {
	Calls        int
	Failures     int
	Retries      int
	InputTokens  int64
	OutputTokens int64
	ByPurpose    map[string]int
}

func NewMetrics() *Metrics {
	return &Metrics{byPurpose: make(map[string]int)}
}

func (m *Metrics) record(purpose string, u Usage, err error) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.byPurpose == nil {
		m.byPurpose = make(map[string]int)
	}
	m.byPurpose[purpose]++
	if err != nil {
		m.failures++
		return
	}
	m.inputTokens += u.InputTokens
	m.outputTokens += u.OutputTokens
}

// Retry counts one retried call.
func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.retries++
	m.mu.Unlock()
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{ByPurpose: map[string]int{}}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	by := make(map[string]int, len(m.byPurpose))
	for k, v := range m.byPurpose {
		by[k] = v
	}
	return Snapshot{
		Calls:        m.calls,
		Failures:     m.failures,
		Retries:      m.retries,
		InputTokens:  m.inputTokens,
		OutputTokens: m.outputTokens,
		ByPurpose:    by,
	}
}

// Purposes returns the recorded purposes in sorted order.
func (s Snapshot) Purposes() []string {
	out := make([]string, 0, len(s.ByPurpose))
	for k := range s.ByPurpose {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Metered records every call made through Backend into Metrics.
type Metered struct {
	Backend Backend
	Metrics *Metrics
}

func (m *Metered) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := m.Backend.Complete(ctx, req)
	m.Metrics.record(req.Purpose, resp.Usage, err)
	return resp, err
}
