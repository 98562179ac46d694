// Package refcache resolves chat identities to ledgers and loads the
// reference lists used to validate entries.
package refcache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"moneybot/internal/cache"
	"moneybot/internal/core"
	ports "moneybot/internal/sheets"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Cache reads through to the backend on every call unless a reference cache
// has been attached with WithReferenceCache. Registry lookups are never
// cached.
type Cache struct {
	reader  ports.ColumnReader
	adminID string
	refs    cache.Cache[core.ReferenceSet]
	group   singleflight.Group
	logger  *slog.Logger

	// gens counts invalidations per ledger. A load only stores its result
	// when no invalidation happened while it was reading.
	mu   sync.Mutex
	gens map[string]uint64
}

type Option func(*Cache)

// WithReferenceCache keeps ReferenceSets in c between calls. Invalidate must
// be called after a config write for the addition to be seen.
func WithReferenceCache(c cache.Cache[core.ReferenceSet]) Option {
	return func(rc *Cache) { rc.refs = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(rc *Cache) {
		if l != nil {
			rc.logger = l
		}
	}
}

func New(reader ports.ColumnReader, adminLedgerID string, opts ...Option) *Cache {
	rc := &Cache{reader: reader, adminID: adminLedgerID, logger: slog.Default(), gens: make(map[string]uint64)}
	for _, o := range opts {
		o(rc)
	}
	return rc
}

// Resolve returns the first registry row whose external id matches. The
// registry columns are read raw so indexes line up across them.
func (c *Cache) Resolve(ctx context.Context, externalID string) (core.UserAccount, error) {
	var users, names, ids []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		users, err = c.reader.ReadColumn(gctx, c.adminID, ports.ColumnUsers)
		return err
	})
	g.Go(func() (err error) {
		names, err = c.reader.ReadColumn(gctx, c.adminID, ports.ColumnNames)
		return err
	})
	g.Go(func() (err error) {
		ids, err = c.reader.ReadColumn(gctx, c.adminID, ports.ColumnLedgerIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.UserAccount{}, fmt.Errorf("read registry: %w", err)
	}

	externalID = strings.TrimSpace(externalID)
	for i := 1; i < len(users); i++ {
		if strings.TrimSpace(users[i]) != externalID {
			continue
		}
		acc := core.UserAccount{ExternalID: externalID, DisplayName: at(names, i), LedgerID: at(ids, i)}
		if acc.LedgerID == "" {
			continue
		}
		return acc, nil
	}
	return core.UserAccount{}, core.ErrNotRegistered
}

// References returns the categories and sources of a ledger.
func (c *Cache) References(ctx context.Context, ledgerID string) (core.ReferenceSet, error) {
	if c.refs != nil {
		if refs, ok := c.refs.Get(ledgerID); ok {
			return refs, nil
		}
	}

	v, err, shared := c.group.Do(ledgerID, func() (any, error) {
		gen := c.generation(ledgerID)
		var refs core.ReferenceSet
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			refs.Categories, err = c.Categories(gctx, ledgerID)
			return err
		})
		g.Go(func() (err error) {
			refs.Sources, err = c.Sources(gctx, ledgerID)
			return err
		})
		if err := g.Wait(); err != nil {
			return core.ReferenceSet{}, err
		}
		c.store(ledgerID, gen, refs)
		return refs, nil
	})
	if err != nil {
		return core.ReferenceSet{}, err
	}
	if shared {
		c.logger.DebugContext(ctx, "Reference load shared", "ledger_id", ledgerID)
	}
	return v.(core.ReferenceSet), nil
}

func (c *Cache) generation(ledgerID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[ledgerID]
}

// store caches refs unless ledgerID was invalidated after the load began.
func (c *Cache) store(ledgerID string, gen uint64, refs core.ReferenceSet) {
	if c.refs == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[ledgerID] != gen {
		c.logger.Debug("Discarding reference load older than invalidation", "ledger_id", ledgerID)
		return
	}
	c.refs.Set(ledgerID, refs)
}

// Invalidate drops any cached ReferenceSet of a ledger.
func (c *Cache) Invalidate(ledgerID string) {
	c.mu.Lock()
	c.gens[ledgerID]++
	if c.refs != nil {
		c.refs.Delete(ledgerID)
	}
	c.mu.Unlock()
	c.group.Forget(ledgerID)
}

func (c *Cache) Categories(ctx context.Context, ledgerID string) ([]string, error) {
	return c.referenceColumn(ctx, ledgerID, ports.ColumnCategories)
}

func (c *Cache) Sources(ctx context.Context, ledgerID string) ([]string, error) {
	return c.referenceColumn(ctx, ledgerID, ports.ColumnSources)
}

func (c *Cache) referenceColumn(ctx context.Context, ledgerID string, col ports.Column) ([]string, error) {
	values, err := c.reader.ReadColumn(ctx, ledgerID, col)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", col, err)
	}
	return core.NormalizeAll(dropHeader(values)), nil
}

// Users returns the distinct registered external ids.
func (c *Cache) Users(ctx context.Context) ([]string, error) {
	return c.registryColumn(ctx, ports.ColumnUsers)
}

// Names returns the distinct registered display names.
func (c *Cache) Names(ctx context.Context) ([]string, error) {
	return c.registryColumn(ctx, ports.ColumnNames)
}

// LedgerIDs returns the distinct registered ledger ids.
func (c *Cache) LedgerIDs(ctx context.Context) ([]string, error) {
	return c.registryColumn(ctx, ports.ColumnLedgerIDs)
}

func (c *Cache) registryColumn(ctx context.Context, col ports.Column) ([]string, error) {
	values, err := c.reader.ReadColumn(ctx, c.adminID, col)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", col, err)
	}
	return dedupe(dropHeader(values)), nil
}

func dropHeader(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	return values[1:]
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func at(values []string, i int) string {
	if i < len(values) {
		return strings.TrimSpace(values[i])
	}
	return ""
}
