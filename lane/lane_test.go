package lane_test

import (
	"testing"

	"github.com/xraph/courier"
	"github.com/xraph/courier/lane"
)

func TestManager_SerializedByDefault(t *testing.T) {
	m := lane.NewManager(courier.LaneConfig{Name: "send"})

	if !m.Acquire("send") {
		t.Fatal("first Acquire refused")
	}
	if m.Acquire("send") {
		t.Error("second Acquire allowed on a serialized lane")
	}

	m.Release("send")
	if !m.Acquire("send") {
		t.Error("Acquire refused after Release")
	}
}

func TestManager_ParallelLane(t *testing.T) {
	m := lane.NewManager(courier.LaneConfig{Name: "attachment", Concurrency: 3})

	for i := range 3 {
		if !m.Acquire("attachment") {
			t.Fatalf("Acquire %d refused below the concurrency limit", i+1)
		}
	}
	if m.Acquire("attachment") {
		t.Error("Acquire allowed past the concurrency limit")
	}
	if got := m.ActiveCount("attachment"); got != 3 {
		t.Errorf("ActiveCount = %d, want 3", got)
	}
}

func TestManager_UnknownLaneRefused(t *testing.T) {
	m := lane.NewManager(courier.LaneConfig{Name: "default"})

	if m.Acquire("nope") {
		t.Error("Acquire allowed for unknown lane")
	}
	if m.Known("nope") {
		t.Error("Known(nope) = true")
	}
	if !m.Known("default") {
		t.Error("Known(default) = false")
	}
}

func TestManager_RateLimit(t *testing.T) {
	// Burst of 1 at a negligible refill rate: exactly one claim allowed.
	m := lane.NewManager(courier.LaneConfig{
		Name:        "receive",
		Concurrency: 10,
		RateLimit:   0.001,
		RateBurst:   1,
	})

	if !m.Acquire("receive") {
		t.Fatal("first Acquire refused")
	}
	if m.Acquire("receive") {
		t.Error("second Acquire allowed despite exhausted rate budget")
	}
}

func TestManager_Concurrency(t *testing.T) {
	m := lane.NewManager(
		courier.LaneConfig{Name: "default"},
		courier.LaneConfig{Name: "attachment", Concurrency: 4},
	)

	if got := m.Concurrency("default"); got != 1 {
		t.Errorf("Concurrency(default) = %d, want 1", got)
	}
	if got := m.Concurrency("attachment"); got != 4 {
		t.Errorf("Concurrency(attachment) = %d, want 4", got)
	}
	if got := m.Concurrency("nope"); got != 1 {
		t.Errorf("Concurrency(nope) = %d, want 1", got)
	}
}

func TestManager_ReleaseNeverUnderflows(t *testing.T) {
	m := lane.NewManager(courier.LaneConfig{Name: "default"})

	m.Release("default")
	if got := m.ActiveCount("default"); got != 0 {
		t.Errorf("ActiveCount = %d, want 0", got)
	}
}
