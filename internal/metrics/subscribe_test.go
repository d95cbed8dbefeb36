package metrics

import (
	"testing"

	"fundcarry/logger"
)

func TestSubscribeReceivesEmittedMetric(t *testing.T) {
	var got []Metric
	unsubscribe := Subscribe(func(m Metric) { got = append(got, m) })
	t.Cleanup(unsubscribe)

	fields := logger.Fields{"instrument_id": "BTC", "unit": "count"}
	EmitMetric(logger.Logger(), "grid", "result_rows", 3, "gauge", fields)

	if len(got) != 1 {
		t.Fatalf("expected one metric, got %d", len(got))
	}
	m := got[0]
	if m.Component != "grid" || m.Name != "result_rows" || m.Type != "gauge" {
		t.Fatalf("unexpected metric: %+v", m)
	}
	if _, ok := fields["metric"]; ok {
		t.Fatalf("caller fields mutated: %v", fields)
	}
	if _, ok := m.Fields["metric"]; ok {
		t.Fatalf("subscriber fields should not carry log keys: %v", m.Fields)
	}
	fields["instrument_id"] = "ETH"
	if m.Fields["instrument_id"] != "BTC" {
		t.Fatal("subscriber fields share the caller's map")
	}
}

func TestEmitMetricDefaultsToCounter(t *testing.T) {
	var got Metric
	unsubscribe := Subscribe(func(m Metric) { got = m })
	t.Cleanup(unsubscribe)

	EmitMetric(nil, "aligner", "aligned_events", 7, "", nil)

	if got.Type != "counter" {
		t.Fatalf("expected counter, got %q", got.Type)
	}
}

func TestEmitMetricWithoutNameIsDropped(t *testing.T) {
	called := false
	unsubscribe := Subscribe(func(Metric) { called = true })
	t.Cleanup(unsubscribe)

	EmitMetric(nil, "grid", "", 1, "counter", nil)

	if called {
		t.Fatal("subscriber received a metric without a name")
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	before := subscriberCount()
	unsubscribe := Subscribe(func(Metric) {})
	if subscriberCount() != before+1 {
		t.Fatal("subscription not registered")
	}
	unsubscribe()
	unsubscribe()
	if subscriberCount() != before {
		t.Fatal("subscription not removed")
	}

	Subscribe(nil)()
	if subscriberCount() != before {
		t.Fatal("nil subscriber must not register")
	}
}
