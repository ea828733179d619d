package metrics

import (
	"strconv"
	"time"
)

// WorkerSlot is the subset of a worker slot's state the collector needs
// to report occupancy; the master supplies these via Source so this
// package never imports the supervisor.
type WorkerSlot struct {
	Slot    int
	Running bool
}

// Source supplies a point-in-time view of the supervisor's state. The
// master implements it over its own slot tables.
type Source interface {
	WorkerSlots() []WorkerSlot
	ForkCount() int
	CanteenEntryCount() int
}

// Collector samples a Source on an interval and republishes its state
// as gauges.
type Collector struct {
	source Source
	stopCh chan struct{}
}

// NewCollector creates a collector over source.
func NewCollector(source Source) *Collector {
	return &Collector{source: source, stopCh: make(chan struct{})}
}

// Start begins collecting metrics every 15 seconds, including an
// immediate sample, until Stop is called.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector. Safe to call at most once.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectWorkerMetrics()
	ForksAlive.Set(float64(c.source.ForkCount()))
	CanteenEntries.Set(float64(c.source.CanteenEntryCount()))
}

func (c *Collector) collectWorkerMetrics() {
	for _, slot := range c.source.WorkerSlots() {
		v := 0.0
		if slot.Running {
			v = 1.0
		}
		WorkersAlive.WithLabelValues(strconv.Itoa(slot.Slot)).Set(v)
	}
}
