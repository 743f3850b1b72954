package configstore

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"github.com/loomrelay/gateway/common/logger"
	"github.com/loomrelay/gateway/model"
)

// Store holds the current Snapshot behind an atomic pointer. Readers call
// Current(); writers call Refresh(); neither blocks the other, matching the
// read-copy-update discipline spec §5 mandates for the config snapshot.
type Store struct {
	db      *gorm.DB
	current atomic.Pointer[Snapshot]
	genSeq  atomic.Uint64

	// routeCache memoizes Route Resolver lookups keyed by "generation:path:model".
	// A cache entry from a stale generation is never looked up again since the
	// key embeds the generation, and Refresh flushes the whole cache as well.
	routeCache *cache.Cache
}

// New constructs a Store bound to db. Call Refresh at least once before
// serving traffic; Current returns nil until the first successful Refresh.
func New(db *gorm.DB, routeCacheTTL time.Duration) *Store {
	return &Store{
		db:         db,
		routeCache: cache.New(routeCacheTTL, 2*routeCacheTTL),
	}
}

// Current returns the latest snapshot, or nil if Refresh has never succeeded.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// RouteCache exposes the resolution-result cache to internal/route so it can
// memoize lookups without configstore needing to know Route Resolver types.
func (s *Store) RouteCache() *cache.Cache { return s.routeCache }

// Refresh reloads upstreams, groups, group_members, and api_tokens from the
// backing relational store in one pass and swaps in a new Snapshot. A failed
// Refresh leaves the previous Snapshot in place (spec §7: "the system
// continues serving from the last good snapshot").
func (s *Store) Refresh(ctx context.Context) error {
	var upstreams []model.Upstream
	var groups []model.Group
	var members []model.GroupMember
	var tokens []model.ApiToken

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Find(&upstreams).Error; err != nil {
			return errors.Wrap(err, "load upstreams")
		}
		if err := tx.Find(&groups).Error; err != nil {
			return errors.Wrap(err, "load groups")
		}
		if err := tx.Find(&members).Error; err != nil {
			return errors.Wrap(err, "load group_members")
		}
		if err := tx.Find(&tokens).Error; err != nil {
			return errors.Wrap(err, "load api_tokens")
		}
		return nil
	})
	if err != nil {
		logger.Logger.Error("config store refresh failed, serving last good snapshot", zap.Error(err))
		return err
	}

	snap := &Snapshot{
		generation:   s.genSeq.Add(1),
		Upstreams:    make(map[string]model.Upstream, len(upstreams)),
		Groups:       make(map[string]model.Group, len(groups)),
		GroupMembers: make(map[string][]model.GroupMember, len(groups)),
		Tokens:       make(map[string]model.ApiToken, len(tokens)),
	}
	for _, u := range upstreams {
		snap.Upstreams[u.ID] = u
	}
	for _, g := range groups {
		snap.Groups[g.ID] = g
	}
	for _, m := range members {
		snap.GroupMembers[m.GroupID] = append(snap.GroupMembers[m.GroupID], m)
	}
	for _, t := range tokens {
		snap.Tokens[t.Token] = t
	}

	snap.upstreamsByPath = append([]model.Upstream(nil), upstreams...)
	sort.SliceStable(snap.upstreamsByPath, func(i, j int) bool {
		a, b := snap.upstreamsByPath[i], snap.upstreamsByPath[j]
		if len(a.MatchPath) != len(b.MatchPath) {
			return len(a.MatchPath) > len(b.MatchPath)
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.ID < b.ID
	})

	snap.groupsByPath = append([]model.Group(nil), groups...)
	sort.SliceStable(snap.groupsByPath, func(i, j int) bool {
		return len(snap.groupsByPath[i].MatchPath) > len(snap.groupsByPath[j].MatchPath)
	})

	s.current.Store(snap)
	s.routeCache.Flush()
	logger.Logger.Info("config store refreshed",
		zap.Uint64("generation", snap.generation),
		zap.Int("upstreams", len(upstreams)),
		zap.Int("groups", len(groups)),
		zap.Int("tokens", len(tokens)))
	return nil
}

// RunPeriodicRefresh blocks, refreshing every interval until ctx is canceled.
func (s *Store) RunPeriodicRefresh(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				logger.Logger.Error("periodic config refresh failed", zap.Error(err))
			}
		}
	}
}
