package cache

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/caserag/ragengine/internal/metrics"
	"github.com/caserag/ragengine/pkg/logger"
)

const DefaultL1MaxSize = 33000

// Store is the shared L2 tier: a TTL-capable key-value service with
// server-side glob pattern deletion. Implementations must report a miss
// as (nil, false, nil), never as an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) (int, error)
	DeletePattern(ctx context.Context, pattern string) (int, error)
	Close() error
}

// Manager fronts expensive operations with a two-tier cache: a bounded
// in-process LRU (L1, no TTL) over a shared store (L2, per-class TTL).
// L1 is a latency optimization only; L2 is the cross-process truth.
// A nil or unavailable L2 degrades the manager to L1-only operation.
type Manager struct {
	l1        *lru.Cache[string, []byte]
	l2        Store
	l1MaxSize int

	mu            sync.Mutex
	l1Hits        uint64
	l2Hits        uint64
	misses        uint64
	writes        uint64
	invalidations uint64
}

type Stats struct {
	L1Hits        uint64  `json:"l1_hits"`
	L2Hits        uint64  `json:"l2_hits"`
	Misses        uint64  `json:"misses"`
	Writes        uint64  `json:"writes"`
	Invalidations uint64  `json:"invalidations"`
	HitRate       float64 `json:"hit_rate"`
	L1Size        int     `json:"l1_size"`
	L1MaxSize     int     `json:"l1_max_size"`
}

func NewManager(l1MaxSize int, l2 Store) (*Manager, error) {
	if l1MaxSize <= 0 {
		l1MaxSize = DefaultL1MaxSize
	}

	l1, err := lru.New[string, []byte](l1MaxSize)
	if err != nil {
		return nil, err
	}

	return &Manager{
		l1:        l1,
		l2:        l2,
		l1MaxSize: l1MaxSize,
	}, nil
}

func (m *Manager) Close() error {
	if m.l2 != nil {
		return m.l2.Close()
	}
	return nil
}

// Get checks L1 first, then L2. An L2 hit is promoted into L1 before
// returning and counts once, as an L2 hit only.
func (m *Manager) Get(ctx context.Context, key string) ([]byte, bool) {
	if value, ok := m.l1.Get(key); ok {
		m.count(func() { m.l1Hits++ })
		metrics.CacheHits.WithLabelValues("l1").Inc()
		return value, true
	}

	if m.l2 != nil {
		value, ok, err := m.l2.Get(ctx, key)
		if err != nil {
			logger.Warn("L2 cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			m.l1.Add(key, value)
			m.count(func() { m.l2Hits++ })
			metrics.CacheHits.WithLabelValues("l2").Inc()
			return value, true
		}
	}

	m.count(func() { m.misses++ })
	metrics.CacheMisses.Inc()
	return nil, false
}

// Set writes through to both tiers. An L2 failure is logged and
// swallowed: L1 still services requests.
func (m *Manager) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	m.l1.Add(key, value)
	m.count(func() { m.writes++ })

	if m.l2 != nil {
		if err := m.l2.Set(ctx, key, value, ttl); err != nil {
			logger.Warn("L2 cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// InvalidateKey removes the key from both tiers and returns how many
// tier entries were removed.
func (m *Manager) InvalidateKey(ctx context.Context, key string) int {
	removed := 0
	if m.l1.Remove(key) {
		removed++
	}
	if m.l2 != nil {
		n, err := m.l2.Delete(ctx, key)
		if err != nil {
			logger.Warn("L2 cache delete failed", zap.String("key", key), zap.Error(err))
		} else {
			removed += n
		}
	}
	if removed > 0 {
		m.count(func() { m.invalidations++ })
	}
	return removed
}

// InvalidatePattern removes every entry matching the glob pattern
// (* and ? wildcards) from both tiers. A pattern matching zero keys is
// a no-op, not an error.
func (m *Manager) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	re, err := globToRegexp(pattern)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range m.l1.Keys() {
		if re.MatchString(key) {
			if m.l1.Remove(key) {
				removed++
			}
		}
	}

	if m.l2 != nil {
		n, err := m.l2.DeletePattern(ctx, pattern)
		if err != nil {
			logger.Warn("L2 pattern invalidation failed",
				zap.String("pattern", pattern), zap.Error(err))
		} else {
			removed += n
		}
	}

	if removed > 0 {
		m.count(func() { m.invalidations++ })
	}

	logger.Debug("Cache pattern invalidated",
		zap.String("pattern", pattern), zap.Int("removed", removed))
	return removed, nil
}

// InvalidateDocument drops all cached artifacts derived from a document.
func (m *Manager) InvalidateDocument(ctx context.Context, documentID string) int {
	n, _ := m.InvalidatePattern(ctx, "*"+documentID+"*")
	return n
}

// InvalidateCase drops all cached search results scoped to a case.
func (m *Manager) InvalidateCase(ctx context.Context, caseID string) int {
	n, _ := m.InvalidatePattern(ctx, "search:*"+caseID+"*")
	return n
}

// Clear empties both tiers.
func (m *Manager) Clear(ctx context.Context) int {
	removed := m.l1.Len()
	m.l1.Purge()

	if m.l2 != nil {
		n, err := m.l2.DeletePattern(ctx, "*")
		if err != nil {
			logger.Warn("L2 cache clear failed", zap.Error(err))
		} else {
			removed += n
		}
	}

	if removed > 0 {
		m.count(func() { m.invalidations++ })
	}
	return removed
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := m.l1Hits + m.l2Hits + m.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(m.l1Hits+m.l2Hits) / float64(total)
	}

	return Stats{
		L1Hits:        m.l1Hits,
		L2Hits:        m.l2Hits,
		Misses:        m.misses,
		Writes:        m.writes,
		Invalidations: m.invalidations,
		HitRate:       hitRate,
		L1Size:        m.l1.Len(),
		L1MaxSize:     m.l1MaxSize,
	}
}

func (m *Manager) count(fn func()) {
	m.mu.Lock()
	fn()
	m.mu.Unlock()
}

// globToRegexp translates * / ? glob wildcards into an anchored regexp
// for client-side filtering of the L1 key set.
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}
