package server

// Hub fans a message out to every live session. Recipients are snapshotted
// from the registry at call time; each send is attempted independently so
// one closed peer never blocks delivery to the rest.
type Hub struct {
	registry *Registry
	metrics  *Metrics
}

// NewHub creates a hub over registry. metrics may be nil.
func NewHub(registry *Registry, metrics *Metrics) *Hub {
	return &Hub{registry: registry, metrics: metrics}
}

// Broadcast sends msg to every registered connection except excludeConnID
// (empty string excludes nobody). A failed send is logged and skipped: the
// hub never unregisters a dead recipient, that cleanup belongs to the
// recipient's own session observing its transport close.
func (h *Hub) Broadcast(msg any, excludeConnID string) {
	delivered, failed := 0, 0

	for _, sess := range h.registry.Sessions() {
		if sess.ID == excludeConnID {
			continue
		}
		if err := sess.Conn.WriteJSON(msg); err != nil {
			debugLog.Printf("Broadcast to %q failed: %v", sess.Username, err)
			failed++
			continue
		}
		delivered++
	}

	if h.metrics != nil {
		h.metrics.RecordBroadcast(delivered, failed)
	}
}
