package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	slots []WorkerSlot
	forks int
	items int
}

func (f fakeSource) WorkerSlots() []WorkerSlot { return f.slots }
func (f fakeSource) ForkCount() int            { return f.forks }
func (f fakeSource) CanteenEntryCount() int    { return f.items }

func TestCollectorCollectUpdatesGauges(t *testing.T) {
	src := fakeSource{
		slots: []WorkerSlot{{Slot: 0, Running: true}, {Slot: 1, Running: false}},
		forks: 2,
		items: 3,
	}
	c := NewCollector(src)
	c.collect()

	if got := testutil.ToFloat64(ForksAlive); got != 2 {
		t.Errorf("ForksAlive = %v, want 2", got)
	}
	if got := testutil.ToFloat64(CanteenEntries); got != 3 {
		t.Errorf("CanteenEntries = %v, want 3", got)
	}
}

func TestCollectorStartStop(t *testing.T) {
	c := NewCollector(fakeSource{})
	c.Start()
	time.Sleep(10 * time.Millisecond)
	c.Stop()
}
