package proxy

import (
	"github.com/loomrelay/gateway/internal/route"
	"github.com/loomrelay/gateway/model"
)

// gateFn reports whether upstreamID may currently be dispatched to. The
// pipeline checks the Channel-State Tracker (C6) before the Circuit Breaker
// (C5) per spec §9's open question ("arbitrary per spec, recorded here for
// determinism").
type gateFn func(upstreamID string) bool

// candidatePool is the gated, orderable member set a retry loop draws from
// for one Target: a single upstream gates to at most one candidate, a group
// gates its members and keeps the balancer strategy/weights needed to pick
// among what remains.
type candidatePool struct {
	groupID  string
	strategy model.Strategy
	weights  map[string]int
	healthy  []model.Upstream
}

// buildPool resolves a Target into a gated candidatePool, looking up each
// group member's Upstream record from snap, preserving spec §4.3's "healthy
// member" definition (circuit not Open and not channel-disabled).
// group member's Upstream record from snap.
func buildPool(target route.Target, upstreamByID map[string]model.Upstream, gate gateFn) candidatePool {
	switch target.Kind {
	case route.KindGroup:
		weights := make(map[string]int, len(target.Members))
		var healthy []model.Upstream
		for _, m := range target.Members {
			u, ok := upstreamByID[m.UpstreamID]
			if !ok {
				continue
			}
			weights[u.ID] = m.Weight
			if gate(u.ID) {
				healthy = append(healthy, u)
			}
		}
		return candidatePool{groupID: target.Group.ID, strategy: target.Group.Strategy, weights: weights, healthy: healthy}
	default:
		var healthy []model.Upstream
		if gate(target.Upstream.ID) {
			healthy = []model.Upstream{target.Upstream}
		}
		return candidatePool{groupID: "single:" + target.Upstream.ID, strategy: model.StrategyRoundRobin, healthy: healthy}
	}
}

// picker draws up to len(pool.healthy) distinct candidates from pool, using
// bal for groups (so RoundRobin/Priority/Weighted selection matches spec
// §4.3) and the sole member directly otherwise. Each Next() call removes the
// picked upstream from the remaining pool so a retry loop never tries the
// same upstream twice for one request.
type picker struct {
	pool      candidatePool
	remaining []model.Upstream
	bal       interface {
		Pick(groupID string, strategy model.Strategy, healthy []model.Upstream, weights map[string]int) (model.Upstream, error)
	}
}

func newPicker(pool candidatePool, bal interface {
	Pick(groupID string, strategy model.Strategy, healthy []model.Upstream, weights map[string]int) (model.Upstream, error)
}) *picker {
	remaining := append([]model.Upstream(nil), pool.healthy...)
	return &picker{pool: pool, remaining: remaining, bal: bal}
}

func (p *picker) Len() int { return len(p.remaining) }

// Next picks the next candidate and removes it from the remaining pool.
func (p *picker) Next() (model.Upstream, bool) {
	if len(p.remaining) == 0 {
		return model.Upstream{}, false
	}
	u, err := p.bal.Pick(p.pool.groupID, p.pool.strategy, p.remaining, p.pool.weights)
	if err != nil {
		return model.Upstream{}, false
	}
	for i, c := range p.remaining {
		if c.ID == u.ID {
			p.remaining = append(p.remaining[:i], p.remaining[i+1:]...)
			break
		}
	}
	return u, true
}
