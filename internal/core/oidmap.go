package core

import (
	"sync"

	"hyperdrift-taker/pkg/domain"
)

// oidMap remembers the exchange-assigned order id for every cloid this
// process has seen acknowledged, since cancels (domain.PendingCancel)
// address resting orders by oid, never by cloid. Populated from
// wsclient.OrderUpdateEvent, which carries both on every update.
type oidMap struct {
	mu  sync.Mutex
	oid map[domain.ClientOrderId]uint64
}

func newOidMap() *oidMap {
	return &oidMap{oid: make(map[domain.ClientOrderId]uint64)}
}

func (m *oidMap) Observe(cloid domain.ClientOrderId, oid uint64) {
	if oid == 0 {
		return
	}
	m.mu.Lock()
	m.oid[cloid] = oid
	m.mu.Unlock()
}

func (m *oidMap) Forget(cloid domain.ClientOrderId) {
	m.mu.Lock()
	delete(m.oid, cloid)
	m.mu.Unlock()
}

func (m *oidMap) Lookup(cloid domain.ClientOrderId) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	oid, ok := m.oid[cloid]
	return oid, ok
}
