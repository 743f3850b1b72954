// Package configstore implements the Config Store (C1): an atomically
// swappable in-memory snapshot of upstreams, groups, and tokens, refreshed
// from the relational store the management plane owns.
package configstore

import "github.com/loomrelay/gateway/model"

// Snapshot is an immutable, value-typed view of the routing configuration.
// A request holds one Snapshot reference for its entire lifetime, so
// concurrent Refresh calls never tear a reader's view (spec §3 "Ownership").
type Snapshot struct {
	generation uint64

	Upstreams    map[string]model.Upstream   // by id
	Groups       map[string]model.Group      // by id
	GroupMembers map[string][]model.GroupMember // by group id
	Tokens       map[string]model.ApiToken   // by token string

	// upstreamsByPath and groupsByPath are precomputed for Route Resolver
	// (C2), ordered by descending match_path length so the first prefix
	// match found is already the longest one.
	upstreamsByPath []model.Upstream
	groupsByPath    []model.Group
}

// Generation returns a monotonically increasing id, bumped on every
// successful Refresh, used as part of the route-resolution cache key so a
// Refresh implicitly invalidates cached entries without a separate sweep.
func (s *Snapshot) Generation() uint64 { return s.generation }

// UpstreamsByPathDesc returns upstreams sorted by descending match_path
// length (ties broken by lower priority, then lexicographic id), matching
// spec §4.2 step 2's tie-break rule.
func (s *Snapshot) UpstreamsByPathDesc() []model.Upstream { return s.upstreamsByPath }

// GroupsByPathDesc returns groups sorted by descending match_path length.
func (s *Snapshot) GroupsByPathDesc() []model.Group { return s.groupsByPath }

// Members returns the (upstream_id, weight) pairs for a group, or nil.
func (s *Snapshot) Members(groupID string) []model.GroupMember { return s.GroupMembers[groupID] }
