package catalog

import (
	"fmt"
	"strings"

	"storefront/internal/airtable"
	"storefront/internal/models"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

// weightPriceField names the column holding the override price for a tier.
func weightPriceField(tier string) string {
	return "Price " + tier
}

func productFromRecord(rec airtable.Record) (models.Product, error) {
	name := rec.String("Name")
	if name == "" {
		return models.Product{}, fmt.Errorf("product has no name")
	}

	price, err := parsePrice(rec.String("Price"))
	if err != nil {
		return models.Product{}, fmt.Errorf("product %q base price: %w", name, err)
	}

	weightPrices := make(map[string]decimal.Decimal)
	for _, tier := range models.WeightTiers {
		raw := rec.String(weightPriceField(tier))
		if raw == "" {
			continue
		}
		if p, err := parsePrice(raw); err == nil {
			weightPrices[tier] = p
		}
	}

	productSlug := strings.ToLower(rec.String("Slug"))
	if productSlug == "" {
		productSlug = slug.Make(name)
	}

	images := rec.AttachmentURLs("Images")
	if len(images) == 0 {
		if u := rec.String("Image URL"); u != "" {
			images = []string{u}
		}
	}

	inStock := true
	if _, ok := rec.Fields["In Stock"]; ok {
		inStock = rec.Bool("In Stock")
	}

	return models.Product{
		ID:           rec.ID,
		Slug:         productSlug,
		Name:         name,
		Description:  rec.String("Description"),
		Price:        price,
		WeightPrices: weightPrices,
		CategoryID:   rec.String("Category"),
		ImageURLs:    images,
		InStock:      inStock,
		Featured:     rec.Bool("Featured"),
	}, nil
}

func categoryFromRecord(rec airtable.Record) (models.Category, bool) {
	name := rec.String("Name")
	if name == "" {
		return models.Category{}, false
	}
	categorySlug := strings.ToLower(rec.String("Slug"))
	if categorySlug == "" {
		categorySlug = slug.Make(name)
	}
	imageURL := ""
	if urls := rec.AttachmentURLs("Image"); len(urls) > 0 {
		imageURL = urls[0]
	}
	return models.Category{
		ID:       rec.ID,
		Name:     name,
		Slug:     categorySlug,
		ImageURL: imageURL,
	}, true
}

// parsePrice accepts "49.99" and "$49.99".
func parsePrice(raw string) (decimal.Decimal, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "$")
	raw = strings.ReplaceAll(raw, ",", "")
	if raw == "" {
		return decimal.Zero, fmt.Errorf("empty price")
	}
	return decimal.NewFromString(raw)
}
