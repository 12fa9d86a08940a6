package graphrag

import (
	"context"

	"github.com/dan-solli/graphrag/pkg/store"
)

// HealthStatus reports the reachability of each collaborator.
type HealthStatus struct {
	// Status is "ok" when every checked component is healthy, else "degraded"
	Status string `json:"status"`

	// Components maps a component name to "ok", "unchecked", a breaker
	// state, or an error message
	Components map[string]string `json:"components"`
}

// Health pings the stores that support it and reports breaker states.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	h := HealthStatus{Status: "ok", Components: make(map[string]string)}

	check := func(name string, s any) {
		p, ok := s.(store.Pinger)
		if !ok {
			h.Components[name] = "unchecked"
			return
		}
		cctx, cancel := callContext(ctx, e.config.CallTimeout)
		defer cancel()
		if err := p.Ping(cctx); err != nil {
			h.Components[name] = "error: " + err.Error()
			h.Status = "degraded"
			e.logger.Warn("health check failed", "component", name, "error", err)
			return
		}
		h.Components[name] = "ok"
	}
	check("graph_store", e.graph)
	check("document_store", e.docs)

	for _, b := range e.breakers {
		state := b.State()
		h.Components["breaker:"+b.Name()] = state
		if state == "open" {
			h.Status = "degraded"
		}
	}
	return h
}
