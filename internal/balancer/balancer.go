// Package balancer implements the Load Balancer (C3): picking one healthy
// member of a group by RoundRobin, Priority, or Weighted strategy.
package balancer

import (
	"sort"
	"strconv"
	"sync/atomic"

	"github.com/loomrelay/gateway/internal/shard"
	"github.com/loomrelay/gateway/model"
)

// ErrAllDown is returned when a group has zero healthy candidates (spec
// §4.3 "If N = 0, fail with AllUpstreamsDown").
var ErrAllDown = errAllDown{}

type errAllDown struct{}

func (errAllDown) Error() string { return "all_upstreams_down" }

// Balancer picks members from a group, keeping one round-robin counter per
// group id in a sharded map (grounded on the original Rust
// RoundRobinBalancer's DashMap<String, AtomicUsize>, and on
// wudi-gateway's atomic-counter round robin).
type Balancer struct {
	counters *shard.Map[*atomic.Uint64]
}

// New constructs a Balancer.
func New() *Balancer {
	return &Balancer{counters: shard.New[*atomic.Uint64]()}
}

// Pick selects one healthy upstream from candidates per strategy. healthy is
// pre-filtered by the caller (circuit not Open, not channel-disabled, per
// spec §4.3's "healthy member" definition) and weights come from members,
// keyed by upstream id; members with weight 0 are excluded from Weighted.
func (b *Balancer) Pick(groupID string, strategy model.Strategy, healthy []model.Upstream, weights map[string]int) (model.Upstream, error) {
	switch strategy {
	case model.StrategyPriority:
		return b.pickPriority(groupID, healthy)
	case model.StrategyWeighted:
		return b.pickWeighted(groupID, healthy, weights)
	default:
		return b.pickRoundRobin(groupID, healthy)
	}
}

func (b *Balancer) counter(key string) *atomic.Uint64 {
	return b.counters.GetOrCreate(key, func() *atomic.Uint64 { return &atomic.Uint64{} })
}

func (b *Balancer) pickRoundRobin(groupID string, healthy []model.Upstream) (model.Upstream, error) {
	if len(healthy) == 0 {
		return model.Upstream{}, ErrAllDown
	}
	c := b.counter(groupID)
	idx := c.Add(1) - 1
	return healthy[int(idx%uint64(len(healthy)))], nil
}

// pickPriority chooses the lowest-priority member; ties round-robin among
// themselves using a counter keyed by (group, priority) so the tie rotation
// doesn't interact with other priority tiers.
func (b *Balancer) pickPriority(groupID string, healthy []model.Upstream) (model.Upstream, error) {
	if len(healthy) == 0 {
		return model.Upstream{}, ErrAllDown
	}
	best := healthy[0].Priority
	for _, u := range healthy[1:] {
		if u.Priority < best {
			best = u.Priority
		}
	}
	tier := make([]model.Upstream, 0, len(healthy))
	for _, u := range healthy {
		if u.Priority == best {
			tier = append(tier, u)
		}
	}
	sort.Slice(tier, func(i, j int) bool { return tier[i].ID < tier[j].ID })
	return b.pickRoundRobin(groupID+"#p"+strconv.Itoa(best), tier)
}

// pickWeighted treats weights as integer slots and picks by counter mod Σw,
// exactly as spec §4.3 describes; weight 0 excludes a member entirely.
func (b *Balancer) pickWeighted(groupID string, healthy []model.Upstream, weights map[string]int) (model.Upstream, error) {
	type slot struct {
		upstream model.Upstream
		weight   int
	}
	slots := make([]slot, 0, len(healthy))
	total := 0
	for _, u := range healthy {
		w := weights[u.ID]
		if w <= 0 {
			continue
		}
		slots = append(slots, slot{u, w})
		total += w
	}
	if total == 0 {
		return model.Upstream{}, ErrAllDown
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].upstream.ID < slots[j].upstream.ID })

	c := b.counter(groupID)
	idx := int(c.Add(1)-1) % total
	for _, s := range slots {
		if idx < s.weight {
			return s.upstream, nil
		}
		idx -= s.weight
	}
	// unreachable given total accounting above
	return slots[len(slots)-1].upstream, nil
}
