package dashboard

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"fundcarry/internal/model"
	"fundcarry/internal/metrics"
)

// metricStore retains the most recent metric events emitted during sweeps.
// It is safe for concurrent use.
type metricStore struct {
	mu    sync.RWMutex
	items []metrics.Metric
	limit int
}

func newMetricStore(limit int) *metricStore {
	if limit <= 0 {
		limit = 200
	}
	return &metricStore{limit: limit}
}

func (s *metricStore) handle(metric metrics.Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append(s.items, metric)
	if len(s.items) > s.limit {
		// keep the most recent entries only
		s.items = append([]metrics.Metric(nil), s.items[len(s.items)-s.limit:]...)
	}
}

func (s *metricStore) snapshot() []metrics.Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]metrics.Metric, len(s.items))
	copy(out, s.items)
	return out
}

// logRecord is a captured log entry as served by /api/logs.
type logRecord struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// logStore retains the most recent logs that flow through the global logger. The
// store implements the logrus Hook interface so that it can be attached directly to
// the application's logger.
type logStore struct {
	mu      sync.RWMutex
	items   []logRecord
	limit   int
	enabled atomic.Bool
}

func newLogStore(limit int) *logStore {
	if limit <= 0 {
		limit = 200
	}
	ls := &logStore{limit: limit}
	ls.enabled.Store(true)
	return ls
}

func (s *logStore) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (s *logStore) Fire(entry *logrus.Entry) error {
	if !s.enabled.Load() {
		return nil
	}

	record := logRecord{
		Timestamp: entry.Time,
		Level:     entry.Level.String(),
		Message:   entry.Message,
	}

	if component, ok := entry.Data["component"].(string); ok {
		record.Component = component
	}

	if len(entry.Data) > 0 {
		record.Fields = make(map[string]interface{}, len(entry.Data))
		for k, v := range entry.Data {
			if k == "component" {
				continue
			}

			switch val := v.(type) {
			case error:
				record.Fields[k] = val.Error()
			case fmt.Stringer:
				record.Fields[k] = val.String()
			default:
				record.Fields[k] = val
			}
		}
	}

	s.mu.Lock()
	s.items = append(s.items, record)
	if len(s.items) > s.limit {
		s.items = append([]logRecord(nil), s.items[len(s.items)-s.limit:]...)
	}
	s.mu.Unlock()
	return nil
}

func (s *logStore) snapshot() []logRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]logRecord, len(s.items))
	copy(out, s.items)
	return out
}

func (s *logStore) close() {
	s.enabled.Store(false)
}

// resultStore holds the result table of the latest run.
type resultStore struct {
	mu    sync.RWMutex
	runID string
	at    time.Time
	rows  []model.GridResultRow
}

func (s *resultStore) set(runID string, rows []model.GridResultRow) {
	copied := append([]model.GridResultRow(nil), rows...)
	s.mu.Lock()
	s.runID = runID
	s.at = time.Now()
	s.rows = copied
	s.mu.Unlock()
}

// resultFilter narrows a query; zero values match everything.
type resultFilter struct {
	instrument string
	confirmN   int
}

func (f resultFilter) match(r model.GridResultRow) bool {
	if f.instrument != "" && r.Instrument != f.instrument {
		return false
	}
	if f.confirmN > 0 && r.ConfirmN != f.confirmN {
		return false
	}
	return true
}

func (s *resultStore) query(f resultFilter) (string, time.Time, []model.GridResultRow) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.GridResultRow, 0, len(s.rows))
	for _, r := range s.rows {
		if f.match(r) {
			out = append(out, r)
		}
	}
	return s.runID, s.at, out
}

// best returns, per instrument, the row with the highest cumulative return.
// Ties keep the row that comes first in sweep order.
func (s *resultStore) best(f resultFilter) []model.GridResultRow {
	_, _, rows := s.query(f)

	byInst := make(map[string]model.GridResultRow)
	for _, r := range rows {
		cur, ok := byInst[r.Instrument]
		if !ok || r.CumulativeReturn > cur.CumulativeReturn {
			byInst[r.Instrument] = r
		}
	}

	out := make([]model.GridResultRow, 0, len(byInst))
	for _, r := range byInst {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out
}
