package metrics

import (
	"maps"
	"sync"
	"time"

	"fundcarry/logger"
)

// Metric is one emitted measurement as seen by subscribers.
type Metric struct {
	Timestamp time.Time
	Component string
	Name      string
	Value     interface{}
	Type      string
	Fields    logger.Fields
}

var subscribers = struct {
	sync.RWMutex
	next uint64
	fns  map[uint64]func(Metric)
}{fns: make(map[uint64]func(Metric))}

// Subscribe delivers every subsequently emitted metric to fn, synchronously
// on the emitting goroutine. The returned func removes the subscription and
// is safe to call more than once.
func Subscribe(fn func(Metric)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	subscribers.Lock()
	subscribers.next++
	id := subscribers.next
	subscribers.fns[id] = fn
	subscribers.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			subscribers.Lock()
			delete(subscribers.fns, id)
			subscribers.Unlock()
		})
	}
}

func subscriberCount() int {
	subscribers.RLock()
	defer subscribers.RUnlock()
	return len(subscribers.fns)
}

func notify(m Metric) {
	subscribers.RLock()
	fns := make([]func(Metric), 0, len(subscribers.fns))
	for _, fn := range subscribers.fns {
		fns = append(fns, fn)
	}
	subscribers.RUnlock()

	for _, fn := range fns {
		fn(m)
	}
}

// newMetric builds the event for EmitMetric. Fields are copied so callers may
// reuse their map.
func newMetric(component, name string, value interface{}, metricType string, fields logger.Fields) Metric {
	if metricType == "" {
		metricType = "counter"
	}
	copied := logger.Fields{}
	maps.Copy(copied, fields)
	return Metric{
		Timestamp: time.Now(),
		Component: component,
		Name:      name,
		Value:     value,
		Type:      metricType,
		Fields:    copied,
	}
}
