// Package route implements the Route Resolver (C2): a pure, allocation-light
// longest-prefix match from (path, model) to a RouteTarget, over an immutable
// configstore.Snapshot.
package route

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/loomrelay/gateway/internal/configstore"
	"github.com/loomrelay/gateway/model"
)

// Kind distinguishes a single-upstream target from a load-balanced group.
type Kind int

const (
	KindSingle Kind = iota
	KindGroup
)

// Target is the Route Resolver's output (spec §3 RouteTarget).
type Target struct {
	Kind     Kind
	Upstream model.Upstream   // set when Kind == KindSingle
	Group    model.Group      // set when Kind == KindGroup
	Members  []model.GroupMember
}

// Error is a resolver failure kind, surfaced by relay/proxy as the
// corresponding HTTP error (spec §7).
type Error string

const (
	ErrNoRoute         Error = "no_route"
	ErrNoRouteForModel Error = "no_route_for_model"
)

func (e Error) Error() string { return string(e) }

// NormalizePath lower-cases and strips a single trailing slash, per spec
// §4.2's "trailing slashes are normalized... byte-wise on normalized
// lowercase path" edge case.
func NormalizePath(p string) string {
	p = strings.ToLower(p)
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// Resolve implements spec §4.2's algorithm: prefer the longest-matching
// Group, fall back to the longest-matching Upstream, then narrow by model.
func Resolve(snap *configstore.Snapshot, path, model_ string) (Target, error) {
	path = NormalizePath(path)

	for _, g := range snap.GroupsByPathDesc() {
		if isPrefix(NormalizePath(g.MatchPath), path) {
			members := snap.Members(g.ID)
			members, err := narrowByModel(snap, members, model_)
			if err != nil {
				return Target{}, err
			}
			return Target{Kind: KindGroup, Group: g, Members: members}, nil
		}
	}

	for _, u := range snap.UpstreamsByPathDesc() {
		if isPrefix(NormalizePath(u.MatchPath), path) {
			if model_ != "" && !u.SupportsModel(model_) {
				return Target{}, fmt.Errorf("%w: upstream %s does not support model %q", ErrNoRouteForModel, u.ID, model_)
			}
			return Target{Kind: KindSingle, Upstream: u}, nil
		}
	}

	return Target{}, ErrNoRoute
}

// cachedResult is the memoized unit ResolveCached stores: either a Target or
// the resolution error, never both meaningfully set.
type cachedResult struct {
	target Target
	err    error
}

// ResolveCached wraps Resolve with the Config Store's (C1) resolution-result
// memo (spec §4.1, `internal/configstore.Store.RouteCache`), keyed by
// generation+path+model so a Refresh's new generation never reads a stale
// entry; Refresh also flushes the cache when it installs a new snapshot.
func ResolveCached(store *configstore.Store, snap *configstore.Snapshot, path, model_ string) (Target, error) {
	rc := store.RouteCache()
	if rc == nil {
		return Resolve(snap, path, model_)
	}

	key := strconv.FormatUint(snap.Generation(), 10) + ":" + path + ":" + model_
	if v, ok := rc.Get(key); ok {
		cached := v.(cachedResult)
		return cached.target, cached.err
	}

	target, err := Resolve(snap, path, model_)
	rc.SetDefault(key, cachedResult{target: target, err: err})
	return target, err
}

func isPrefix(prefix, path string) bool {
	return prefix != "" && strings.HasPrefix(path, prefix)
}

// narrowByModel drops members whose upstream doesn't advertise model_, per
// spec §4.2 step 3. If narrowing leaves nothing, resolution fails with
// NoRouteForModel.
func narrowByModel(snap *configstore.Snapshot, members []model.GroupMember, model_ string) ([]model.GroupMember, error) {
	if model_ == "" {
		return members, nil
	}
	narrowed := make([]model.GroupMember, 0, len(members))
	for _, m := range members {
		u, ok := snap.Upstreams[m.UpstreamID]
		if !ok {
			continue
		}
		if u.SupportsModel(model_) {
			narrowed = append(narrowed, m)
		}
	}
	if len(narrowed) == 0 {
		return nil, fmt.Errorf("%w: no member supports model %q", ErrNoRouteForModel, model_)
	}
	return narrowed, nil
}
