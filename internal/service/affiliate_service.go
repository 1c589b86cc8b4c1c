package service

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/airtable"
	"storefront/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const affiliateScanLimit = 100

var hundredPercent = decimal.NewFromInt(100)

// AffiliateResult is the outcome of validating a discount code.
type AffiliateResult struct {
	Valid    bool            `json:"valid"`
	Code     string          `json:"code,omitempty"`
	Discount decimal.Decimal `json:"discount"`
	Name     string          `json:"name,omitempty"`
}

// RecordLister reads rows from the external affiliate table.
type RecordLister interface {
	List(ctx context.Context, table string, q airtable.Query) ([]airtable.Record, error)
}

// AffiliateService validates affiliate discount codes. Lookups are not cached
// so deactivating a code takes effect immediately.
type AffiliateService struct {
	lister RecordLister
	table  string
	logger *zap.Logger
}

// NewAffiliateService creates a new affiliate service
func NewAffiliateService(lister RecordLister, table string) *AffiliateService {
	return &AffiliateService{
		lister: lister,
		table:  table,
		logger: util.GetLogger(),
	}
}

// NormalizeCode trims and upper-cases a code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate looks a code up. Unknown, inactive and out-of-range codes come
// back with Valid false and no error.
func (s *AffiliateService) Validate(ctx context.Context, code string) (*AffiliateResult, error) {
	ctx, span := util.StartSpan(ctx, "AffiliateService.Validate")
	defer span.End()

	code = NormalizeCode(code)
	if code == "" {
		return nil, validationError("code is required")
	}

	records, err := s.lister.List(ctx, s.table, airtable.Query{MaxRecords: affiliateScanLimit})
	if err != nil {
		return nil, fmt.Errorf("list affiliate codes: %w", err)
	}

	for _, rec := range records {
		if NormalizeCode(rec.String("Code")) != code {
			continue
		}
		if !rec.Bool("Active") {
			s.logger.Info("Inactive affiliate code used", zap.String("code", code))
			return &AffiliateResult{Valid: false, Code: code}, nil
		}
		pct, err := parsePercent(rec.String("Discount"))
		if err != nil || pct.LessThanOrEqual(decimal.Zero) || pct.GreaterThan(hundredPercent) {
			s.logger.Warn("Affiliate code has unusable discount",
				zap.String("code", code),
				zap.String("discount", rec.String("Discount")))
			return &AffiliateResult{Valid: false, Code: code}, nil
		}
		return &AffiliateResult{
			Valid:    true,
			Code:     code,
			Discount: pct,
			Name:     rec.String("Name"),
		}, nil
	}

	return &AffiliateResult{Valid: false, Code: code}, nil
}

func parsePercent(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	return decimal.NewFromString(raw)
}
