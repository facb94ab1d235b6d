package token

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/stephnangue/notary/helper"
	"github.com/stephnangue/notary/logger"
)

var (
	ErrStoreClosed = errors.New("token store is closed")
)

// StoreConfig holds configuration for the token store
type StoreConfig struct {
	// CacheSize is the maximum number of cached (owner, type) entries
	CacheSize int

	// ReaperWorkers is the number of background cleanup workers
	ReaperWorkers int

	// ReaperQueue is the depth of the cleanup queue
	ReaperQueue int
}

// DefaultStoreConfig returns a production-ready default configuration
func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		CacheSize:     500,
		ReaperWorkers: 2,
		ReaperQueue:   256,
	}
}

// Store manages the token lifecycle: issue, look up, renew, revoke.
//
// The remote store is the source of truth; the in-process cache only
// shields it from redundant lookups. Concurrent renewals for one user are
// tolerated rather than serialized: a freshly minted token never
// invalidates older live ones, so the worst case of a race is a few extra
// live tokens that expiry-driven cleanup reclaims.
type Store struct {
	mu      sync.RWMutex
	backend Backend
	cache   *Cache
	reaper  *Reaper
	logger  logger.Logger
	metrics *Metrics
	closed  bool
}

// NewStore creates a token store in front of the given backend.
func NewStore(backend Backend, log logger.Logger, config *StoreConfig) (*Store, error) {
	if config == nil {
		config = DefaultStoreConfig()
	}

	cache, err := NewCache(config.CacheSize)
	if err != nil {
		return nil, err
	}

	metrics := &Metrics{}

	store := &Store{
		backend: backend,
		cache:   cache,
		reaper:  NewReaper(backend, log.WithSubsystem("reaper"), metrics, config.ReaperWorkers, config.ReaperQueue),
		logger:  log,
		metrics: metrics,
	}

	log.Info("token store initialized",
		logger.Int("cache_size", config.CacheSize),
		logger.Int("reaper_workers", config.ReaperWorkers))

	return store, nil
}

// GetOrCreate returns a live token for (owner, typ), minting one with the
// given ttl only when none exists and allowCreate is true. With
// allowCreate false and no live token it returns (nil, nil); the webhook
// path must never mint a token as a side effect of a failed probe.
//
// When several live tokens exist the soonest-expiring one is reused, which
// keeps rotation from piling up distinct tokens under concurrent requests.
func (s *Store) GetOrCreate(ctx context.Context, owner string, typ Type, ttl time.Duration, allowCreate bool) (*Token, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	now := time.Now()

	if cached := s.cache.Get(owner, typ, now); cached != nil {
		s.metrics.IncrementCacheHits()
		return cached, nil
	}
	s.metrics.IncrementCacheMisses()

	valid, err := s.fetchValid(ctx, owner, typ, now)
	if err != nil {
		return nil, err
	}

	if len(valid) > 0 {
		reused := valid[0]
		s.metrics.IncrementTokensReused()
		s.cache.Put(owner, typ, reused, now)
		return reused, nil
	}

	if !allowCreate {
		return nil, nil
	}

	return s.mint(ctx, owner, typ, ttl, now)
}

// GetAllValid returns every live token for (owner, typ). Expired ones are
// handed to the reaper and excluded from the result. Validity is judged
// against a single instant captured at entry.
//
// Several live tokens is the expected steady state around a renewal: the
// old token keeps working until its own expiry so in-flight requests are
// never cut off.
func (s *Store) GetAllValid(ctx context.Context, owner string, typ Type) ([]*Token, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	return s.fetchValid(ctx, owner, typ, time.Now())
}

// Create returns a token for (owner, typ). Without force it reuses any
// live token first; with force it always mints, which is how proactive
// renewal produces the overlap window. Minted tokens are written through
// to the cache so the next request in the same flow does not re-read the
// store.
func (s *Store) Create(ctx context.Context, owner string, typ Type, ttl time.Duration, force bool) (*Token, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	if !force {
		existing, err := s.GetOrCreate(ctx, owner, typ, ttl, false)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	return s.mint(ctx, owner, typ, ttl, time.Now())
}

// Revoke deletes a single token, used at logout. Deleting a token that is
// already gone is not an error.
func (s *Store) Revoke(ctx context.Context, t *Token) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	if _, err := s.backend.DeleteToken(ctx, t.Value); err != nil {
		return err
	}

	// The cached entry for this slot may be a different, still-valid
	// token; evicting it only costs one extra store read.
	s.cache.Evict(t.Owner, t.Type)
	s.metrics.IncrementTokensRevoked()

	s.logger.Debug("token revoked",
		logger.String("token_hash", helper.Get8BytesHash(t.Value)),
		logger.String("owner", t.Owner))

	return nil
}

// RevokeAll deletes a batch of tokens sequentially, best effort.
// Individual failures are logged and skipped, not retried.
func (s *Store) RevokeAll(ctx context.Context, tokens []*Token) {
	for _, t := range tokens {
		if err := s.Revoke(ctx, t); err != nil {
			s.logger.Warn("failed to revoke token",
				logger.String("token_hash", helper.Get8BytesHash(t.Value)),
				logger.String("owner", t.Owner),
				logger.Err(err))
		}
	}
}

// GetMetrics returns a snapshot of the store's operational counters.
func (s *Store) GetMetrics() map[string]int64 {
	return s.metrics.GetSnapshot()
}

// Cache exposes the underlying cache, for tests and introspection.
func (s *Store) Cache() *Cache {
	return s.cache
}

// Close stops the background reaper and refuses further operations.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.reaper.Close()
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// fetchValid reads all tokens for (owner, typ) from the backend and
// partitions them by the given instant. The expired partition goes to the
// reaper; the valid partition comes back sorted soonest-expiring first.
func (s *Store) fetchValid(ctx context.Context, owner string, typ Type, now time.Time) ([]*Token, error) {
	all, err := s.backend.FetchTokens(ctx, owner, typ)
	if err != nil {
		return nil, err
	}

	var valid, expired []*Token
	for _, t := range all {
		if t.Expired(now) {
			expired = append(expired, t)
		} else {
			valid = append(valid, t)
		}
	}

	if len(expired) > 0 {
		s.reaper.Schedule(expired...)
	}

	sort.Slice(valid, func(i, j int) bool {
		return valid[i].Expires.Before(valid[j].Expires)
	})

	return valid, nil
}

// mint creates, persists and caches a brand new token.
func (s *Store) mint(ctx context.Context, owner string, typ Type, ttl time.Duration, now time.Time) (*Token, error) {
	t := &Token{
		Value:   helper.GenerateBearerToken(),
		Type:    typ,
		Expires: now.Add(ttl),
		Owner:   owner,
	}

	created, err := s.backend.InsertToken(ctx, t)
	if err != nil {
		return nil, err
	}

	s.cache.Put(owner, typ, created, now)
	s.metrics.IncrementTokensMinted()

	s.logger.Debug("token minted",
		logger.String("token_hash", helper.Get8BytesHash(created.Value)),
		logger.String("owner", owner),
		logger.String("type", typ.String()),
		logger.String("ttl", helper.FormatTTL(ttl)))

	return created, nil
}
