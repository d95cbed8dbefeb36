package logger

import (
	"sort"
	"sync"
	"sync/atomic"
)

type componentStat struct {
	warns  int64
	errors int64
}

var components sync.Map // map[string]*componentStat

func statFor(component string) *componentStat {
	v, _ := components.LoadOrStore(component, &componentStat{})
	return v.(*componentStat)
}

func recordWarn(component string) {
	atomic.AddInt64(&statFor(component).warns, 1)
}

func recordError(component string) {
	atomic.AddInt64(&statFor(component).errors, 1)
}

// ComponentCount is the number of warnings and errors logged by one component.
type ComponentCount struct {
	Component string
	Warns     int64
	Errors    int64
}

// Counts returns the per-component warn/error totals sorted by component.
func Counts() []ComponentCount {
	out := make([]ComponentCount, 0)
	components.Range(func(k, v any) bool {
		cs := v.(*componentStat)
		out = append(out, ComponentCount{
			Component: k.(string),
			Warns:     atomic.LoadInt64(&cs.warns),
			Errors:    atomic.LoadInt64(&cs.errors),
		})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Component < out[j].Component })
	return out
}

// Report logs the accumulated warn/error counts, one line per component.
func Report(l *Log) {
	for _, c := range Counts() {
		if c.Warns == 0 && c.Errors == 0 {
			continue
		}
		l.WithFields(Fields{
			"component": c.Component,
			"warns":     c.Warns,
			"errors":    c.Errors,
		}).Info("run log summary")
	}
}
