// Package catalog adapts external catalog records into typed products and
// categories. Reads are cached for a fixed TTL, identical concurrent
// queries share a single upstream call, and a rate-limited upstream
// degrades to an empty result instead of an error.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/airtable"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrNotFound is returned when a product or category does not exist.
var ErrNotFound = errors.New("catalog item not found")

// RecordLister is the upstream the catalog reads from.
type RecordLister interface {
	List(ctx context.Context, table string, q airtable.Query) ([]airtable.Record, error)
}

// Tables names the upstream tables.
type Tables struct {
	Products   string
	Categories string
}

// Catalog is the read side of the storefront catalog.
type Catalog struct {
	lister RecordLister
	cache  Cache
	ttl    time.Duration
	tables Tables
	group  singleflight.Group
	logger *zap.Logger
}

// New creates a catalog adapter. A nil cache falls back to an in-process one.
func New(lister RecordLister, cache Cache, tables Tables, ttl time.Duration) *Catalog {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Catalog{
		lister: lister,
		cache:  cache,
		ttl:    ttl,
		tables: tables,
		logger: util.GetLogger(),
	}
}

// Products returns every product sorted by name.
func (c *Catalog) Products(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "Catalog.Products")
	defer span.End()

	records, err := c.fetch(ctx, c.tables.Products, airtable.Query{SortField: "Name"})
	if err != nil {
		return nil, err
	}
	return c.toProducts(records), nil
}

// FeaturedProducts returns products flagged as featured.
func (c *Catalog) FeaturedProducts(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "Catalog.FeaturedProducts")
	defer span.End()

	records, err := c.fetch(ctx, c.tables.Products, airtable.Query{Formula: "{Featured} = TRUE()", SortField: "Name"})
	if err != nil {
		return nil, err
	}
	return c.toProducts(records), nil
}

// ProductBySlug finds a product by its slug.
func (c *Catalog) ProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	products, err := c.Products(ctx)
	if err != nil {
		return nil, err
	}
	slug = strings.ToLower(strings.TrimSpace(slug))
	for i := range products {
		if products[i].Slug == slug {
			return &products[i], nil
		}
	}
	return nil, fmt.Errorf("%w: product %q", ErrNotFound, slug)
}

// ProductByID finds a product by its record id.
func (c *Catalog) ProductByID(ctx context.Context, id string) (*models.Product, error) {
	products, err := c.Products(ctx)
	if err != nil {
		return nil, err
	}
	for i := range products {
		if products[i].ID == id {
			return &products[i], nil
		}
	}
	return nil, fmt.Errorf("%w: product %q", ErrNotFound, id)
}

// ProductsByIDs indexes the requested products by id; missing ids are absent from the map.
func (c *Catalog) ProductsByIDs(ctx context.Context, ids []string) (map[string]*models.Product, error) {
	products, err := c.Products(ctx)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	out := make(map[string]*models.Product, len(ids))
	for i := range products {
		if _, ok := wanted[products[i].ID]; ok {
			out[products[i].ID] = &products[i]
		}
	}
	return out, nil
}

// ProductsByCategory returns products linked to a category id.
func (c *Catalog) ProductsByCategory(ctx context.Context, categoryID string) ([]models.Product, error) {
	products, err := c.Products(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Product, 0)
	for _, p := range products {
		if p.CategoryID == categoryID {
			out = append(out, p)
		}
	}
	return out, nil
}

// Categories returns every category sorted by name.
func (c *Catalog) Categories(ctx context.Context) ([]models.Category, error) {
	ctx, span := util.StartSpan(ctx, "Catalog.Categories")
	defer span.End()

	records, err := c.fetch(ctx, c.tables.Categories, airtable.Query{SortField: "Name"})
	if err != nil {
		return nil, err
	}
	categories := make([]models.Category, 0, len(records))
	for _, rec := range records {
		if cat, ok := categoryFromRecord(rec); ok {
			categories = append(categories, cat)
		}
	}
	return categories, nil
}

// CategoryBySlug finds a category by its slug.
func (c *Catalog) CategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	categories, err := c.Categories(ctx)
	if err != nil {
		return nil, err
	}
	slug = strings.ToLower(strings.TrimSpace(slug))
	for i := range categories {
		if categories[i].Slug == slug {
			return &categories[i], nil
		}
	}
	return nil, fmt.Errorf("%w: category %q", ErrNotFound, slug)
}

func (c *Catalog) toProducts(records []airtable.Record) []models.Product {
	products := make([]models.Product, 0, len(records))
	for _, rec := range records {
		p, err := productFromRecord(rec)
		if err != nil {
			c.logger.Warn("Skipping catalog record",
				zap.String("record_id", rec.ID),
				zap.Error(err))
			continue
		}
		products = append(products, p)
	}
	return products
}

// fetch reads a table through the cache and the in-flight group.
func (c *Catalog) fetch(ctx context.Context, table string, q airtable.Query) ([]airtable.Record, error) {
	key := fmt.Sprintf("catalog:%s:%s", table, q.Key())

	if raw, ok, err := c.cache.Get(ctx, key); err != nil {
		c.logger.Warn("Catalog cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		var records []airtable.Record
		if err := json.Unmarshal(raw, &records); err == nil {
			util.CatalogRequestsTotal.WithLabelValues(table, "hit").Inc()
			return records, nil
		}
	}

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		// the result is shared, so one caller going away must not fail the rest
		ctx := context.WithoutCancel(ctx)
		start := time.Now()
		records, err := c.lister.List(ctx, table, q)
		util.CatalogUpstreamLatency.WithLabelValues(table).Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(records); err == nil {
			if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
				c.logger.Warn("Catalog cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
		return records, nil
	})
	if err != nil {
		if errors.Is(err, airtable.ErrRateLimited) {
			util.CatalogRequestsTotal.WithLabelValues(table, "rate_limited").Inc()
			c.logger.Warn("Catalog rate limited, serving empty result", zap.String("table", table))
			return []airtable.Record{}, nil
		}
		util.CatalogRequestsTotal.WithLabelValues(table, "error").Inc()
		return nil, fmt.Errorf("fetch %s: %w", table, err)
	}

	if shared {
		util.CatalogRequestsTotal.WithLabelValues(table, "shared").Inc()
	} else {
		util.CatalogRequestsTotal.WithLabelValues(table, "miss").Inc()
	}
	return v.([]airtable.Record), nil
}
