package token

import "sync"

// Metrics tracks operational statistics for the token store.
type Metrics struct {
	mu            sync.RWMutex
	TokensMinted  int64
	TokensReused  int64
	TokensRevoked int64
	TokensReaped  int64
	CacheHits     int64
	CacheMisses   int64
	ReapFailures  int64
	ReapDropped   int64
}

func (m *Metrics) IncrementTokensMinted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TokensMinted++
}

func (m *Metrics) IncrementTokensReused() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TokensReused++
}

func (m *Metrics) IncrementTokensRevoked() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TokensRevoked++
}

func (m *Metrics) IncrementTokensReaped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TokensReaped++
}

func (m *Metrics) IncrementCacheHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheHits++
}

func (m *Metrics) IncrementCacheMisses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheMisses++
}

func (m *Metrics) IncrementReapFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReapFailures++
}

func (m *Metrics) IncrementReapDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReapDropped++
}

func (m *Metrics) GetSnapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]int64{
		"tokens_minted":  m.TokensMinted,
		"tokens_reused":  m.TokensReused,
		"tokens_revoked": m.TokensRevoked,
		"tokens_reaped":  m.TokensReaped,
		"cache_hits":     m.CacheHits,
		"cache_misses":   m.CacheMisses,
		"reap_failures":  m.ReapFailures,
		"reap_dropped":   m.ReapDropped,
	}
}
