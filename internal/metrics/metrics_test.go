package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bnema/xtraybridge/internal/trayicon"
)

var _ trayicon.Recorder = (*Metrics)(nil)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Requested()
	m.Requested()
	m.Added()
	m.Removed()
	m.Dropped(trayicon.DropActorFailed)
	m.Live(3)

	if got := testutil.ToFloat64(m.requested); got != 2 {
		t.Errorf("requested = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.added); got != 1 {
		t.Errorf("added = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.removed); got != 1 {
		t.Errorf("removed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.dropped.WithLabelValues(trayicon.DropActorFailed)); got != 1 {
		t.Errorf("dropped{actor} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.live); got != 3 {
		t.Errorf("live = %v, want 3", got)
	}

	n, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatalf("GatherAndCount() = %v", err)
	}
	if n != 5 {
		t.Errorf("gathered %d series, want 5", n)
	}
}
