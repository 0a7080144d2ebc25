package goserde

import (
	"crypto/sha256"
	"encoding/hex"
	"reflect"
	"sync"

	"github.com/cockroachdb/errors"
	j "github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/reoring/goserde/internal/ir"
)

// CacheKey identifies one compiled Program. It is comparable and used as the
// in-memory map key; Digest addresses persisted entries.
type CacheKey struct {
	Type      string // type signature
	Config    string // Config.Hash
	Direction Direction
}

// NewCacheKey builds the key of (t, cfg, dir).
func NewCacheKey(t Type, cfg Config, dir Direction) CacheKey {
	return CacheKey{Type: t.Signature(), Config: cfg.Hash(), Direction: dir}
}

// Digest returns the hex SHA-256 content address of k.
func (k CacheKey) Digest() string {
	h := sha256.New()
	h.Write([]byte(k.Type))
	h.Write([]byte{0})
	h.Write([]byte(k.Config))
	h.Write([]byte{0})
	h.Write([]byte(k.Direction.String()))
	return hex.EncodeToString(h.Sum(nil))
}

func (k CacheKey) typeHash() string {
	sum := sha256.Sum256([]byte(k.Type))
	return hex.EncodeToString(sum[:])
}

// ProgramStore persists serialized programs by digest. Load reports a miss
// with found == false and a nil error.
type ProgramStore interface {
	Load(digest string) (data []byte, found bool, err error)
	Save(digest string, data []byte) error
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithStore backs the cache with a persistent store.
func WithStore(s ProgramStore) CacheOption { return func(c *Cache) { c.store = s } }

// WithMetrics records cache events.
func WithMetrics(m *CacheMetrics) CacheOption { return func(c *Cache) { c.metrics = m } }

// Cache holds compiled programs. Each key is compiled at most once per Cache
// while it succeeds: concurrent first lookups share one compilation. Failed
// compilations are not remembered.
type Cache struct {
	mu       sync.RWMutex
	programs map[CacheKey]*Program
	group    singleflight.Group
	store    ProgramStore
	metrics  *CacheMetrics
	// owner is the resolver programs are compiled against.
	owner Resolver
}

// NewCache returns an empty cache.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{programs: make(map[CacheKey]*Program)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// bind ties c to r on first use. Keys do not name a resolver, so one cache
// serves exactly one.
func (c *Cache) bind(r Resolver) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owner == nil {
		c.owner = r
		return nil
	}
	if sameResolver(c.owner, r) {
		return nil
	}
	return ErrCacheResolverMismatch
}

func sameResolver(a, b Resolver) bool {
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}

// Len returns the number of programs held in memory.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.programs)
}

func (c *Cache) get(key CacheKey) *Program {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.programs[key]
}

// publish stores p unless another program won the race, and returns the
// stored one.
func (c *Cache) publish(key CacheKey, p *Program) *Program {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.programs[key]; ok {
		return prev
	}
	c.programs[key] = p
	return p
}

// GetOrCompile returns the program of key, calling compile on a miss.
func (c *Cache) GetOrCompile(key CacheKey, compile func() (*Program, error)) (*Program, error) {
	if p := c.get(key); p != nil {
		c.metrics.observe(eventHit)
		return p, nil
	}
	c.metrics.observe(eventMiss)
	v, err, _ := c.group.Do(key.Digest(), func() (any, error) {
		if p := c.get(key); p != nil {
			return p, nil
		}
		if p := c.load(key); p != nil {
			c.metrics.observe(eventStoreHit)
			return c.publish(key, p), nil
		}
		p, err := compile()
		if err != nil {
			c.metrics.observe(eventCompileError)
			Logger().Debug("program compile failed", zap.String("type", key.Type), zap.Stringer("direction", key.Direction), zap.Error(err))
			return nil, err
		}
		c.metrics.observe(eventCompile)
		Logger().Debug("program compiled", zap.String("type", key.Type), zap.Stringer("direction", key.Direction))
		p = c.publish(key, p)
		c.save(key, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Program), nil
}

type envelope struct {
	Format     int         `json:"format"`
	TypeHash   string      `json:"typeHash"`
	ConfigHash string      `json:"configHash"`
	Direction  string      `json:"direction"`
	Program    *ir.Program `json:"program"`
}

func (c *Cache) load(key CacheKey) *Program {
	if c.store == nil {
		return nil
	}
	digest := key.Digest()
	data, found, err := c.store.Load(digest)
	if err != nil {
		Logger().Warn("program store load failed", zap.String("digest", digest), zap.Error(err))
		return nil
	}
	if !found {
		return nil
	}
	p, err := decodeEnvelope(key, data)
	if err != nil {
		c.metrics.observe(eventStoreReject)
		Logger().Warn("discarding persisted program", zap.String("digest", digest), zap.String("type", key.Type), zap.Error(err))
		return nil
	}
	return p
}

func decodeEnvelope(key CacheKey, data []byte) (*Program, error) {
	var env envelope
	if err := j.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(err, "corrupt entry")
	}
	switch {
	case env.Format != ir.Format:
		return nil, errors.Newf("format %d, want %d", env.Format, ir.Format)
	case env.TypeHash != key.typeHash():
		return nil, errors.New("type hash mismatch")
	case env.ConfigHash != key.Config:
		return nil, errors.New("config hash mismatch")
	case env.Direction != key.Direction.String():
		return nil, errors.New("direction mismatch")
	}
	if err := ir.Validate(env.Program); err != nil {
		return nil, err
	}
	if env.Program.Type != key.Type || env.Program.Direction != env.Direction {
		return nil, errors.New("program does not match its envelope")
	}
	return &Program{p: env.Program}, nil
}

func (c *Cache) save(key CacheKey, p *Program) {
	if c.store == nil {
		return
	}
	data, err := j.Marshal(envelope{
		Format:     ir.Format,
		TypeHash:   key.typeHash(),
		ConfigHash: key.Config,
		Direction:  key.Direction.String(),
		Program:    p.p,
	})
	if err == nil {
		err = c.store.Save(key.Digest(), data)
	}
	if err != nil {
		Logger().Warn("program store save failed", zap.String("type", key.Type), zap.Error(err))
	}
}
