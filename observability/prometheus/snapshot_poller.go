package prometheus

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/Swind/go-thread-manager/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ManagerSnapshotProvider provides current manager and family stats snapshots.
// *core.ThreadManager satisfies it.
type ManagerSnapshotProvider interface {
	ManagerStats() core.ManagerStats
	Families() []core.FamilyStats
}

var _ ManagerSnapshotProvider = (*core.ThreadManager)(nil)

// SnapshotPoller periodically exports manager Stats snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	managersMu sync.RWMutex
	managers   map[string]ManagerSnapshotProvider

	managerFamilies   *prom.GaugeVec
	managerCapacity   *prom.GaugeVec
	managerGeneration *prom.GaugeVec
	managerClosed     *prom.GaugeVec

	familyPending    *prom.GaugeVec
	familyFlushing   *prom.GaugeVec
	familyFlushState *prom.GaugeVec
	familyPosted     *prom.GaugeVec
	familyDispatched *prom.GaugeVec
	familyDiscarded  *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(namespace string, reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	namespace = normalizeLabel(namespace, DefaultNamespace)
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string, labels ...string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}

	p := &SnapshotPoller{
		interval: interval,
		managers: make(map[string]ManagerSnapshotProvider),

		managerFamilies:   gauge("manager_families", "Number of live job families.", "manager"),
		managerCapacity:   gauge("manager_capacity", "Maximum number of job families.", "manager"),
		managerGeneration: gauge("manager_generation", "Last generation stamped into a handle.", "manager"),
		managerClosed:     gauge("manager_closed", "Manager closed state (1=closed, 0=open).", "manager"),

		familyPending:    gauge("family_pending", "Jobs waiting in the family queue.", "manager", "family", "slot"),
		familyFlushing:   gauge("family_flushing", "Flush barriers not yet reached.", "manager", "family", "slot"),
		familyFlushState: gauge("family_flush_requested", "Family flush state (1=flush requested, 0=none).", "manager", "family", "slot"),
		familyPosted:     gauge("family_posted_total", "Posted job count snapshot.", "manager", "family", "slot"),
		familyDispatched: gauge("family_dispatched_total", "Dispatched job count snapshot.", "manager", "family", "slot"),
		familyDiscarded:  gauge("family_discarded_total", "Discarded job count snapshot.", "manager", "family", "slot"),
	}

	for _, vec := range []**prom.GaugeVec{
		&p.managerFamilies, &p.managerCapacity, &p.managerGeneration, &p.managerClosed,
		&p.familyPending, &p.familyFlushing, &p.familyFlushState,
		&p.familyPosted, &p.familyDispatched, &p.familyDiscarded,
	} {
		registered, err := registerCollector(reg, *vec)
		if err != nil {
			return nil, err
		}
		*vec = registered
	}

	return p, nil
}

// AddManager adds or replaces a manager snapshot provider by name.
func (p *SnapshotPoller) AddManager(name string, provider ManagerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "manager")
	p.managersMu.Lock()
	p.managers[name] = provider
	p.managersMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.managersMu.RLock()
	defer p.managersMu.RUnlock()

	// Unregistered families must not linger as stale series.
	for _, vec := range []*prom.GaugeVec{
		p.familyPending, p.familyFlushing, p.familyFlushState,
		p.familyPosted, p.familyDispatched, p.familyDiscarded,
	} {
		vec.Reset()
	}

	for name, provider := range p.managers {
		ms := provider.ManagerStats()
		p.managerFamilies.WithLabelValues(name).Set(float64(ms.Families))
		p.managerCapacity.WithLabelValues(name).Set(float64(ms.Capacity))
		p.managerGeneration.WithLabelValues(name).Set(float64(ms.Generation))
		p.managerClosed.WithLabelValues(name).Set(boolGauge(ms.Closed))

		for _, fs := range provider.Families() {
			labels := []string{name, normalizeLabel(fs.Name, "unknown"), strconv.FormatUint(uint64(fs.Slot), 10)}
			p.familyPending.WithLabelValues(labels...).Set(float64(fs.Pending))
			p.familyFlushing.WithLabelValues(labels...).Set(float64(fs.Flushing))
			p.familyFlushState.WithLabelValues(labels...).Set(boolGauge(fs.FlushState == core.FlushRequested))
			p.familyPosted.WithLabelValues(labels...).Set(float64(fs.Posted))
			p.familyDispatched.WithLabelValues(labels...).Set(float64(fs.Dispatched))
			p.familyDiscarded.WithLabelValues(labels...).Set(float64(fs.Discarded))
		}
	}
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
