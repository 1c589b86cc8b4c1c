package service

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/airtable"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAffiliateValidate(t *testing.T) {
	lister := &fakeLister{records: []airtable.Record{
		affiliateRecord("Save10", "10%", true),
		affiliateRecord("OFF", "0", true),
		affiliateRecord("HUGE", "150", true),
		affiliateRecord("PAUSED", "20", false),
		{ID: "recNum", Fields: map[string]any{"Code": "NUM", "Discount": float64(12.5), "Active": true}},
	}}
	svc := NewAffiliateService(lister, "Affiliates")
	ctx := context.Background()

	res, err := svc.Validate(ctx, "  save10 ")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "SAVE10", res.Code)
	assert.Equal(t, "10", res.Discount.String())
	assert.Equal(t, "Partner Save10", res.Name)

	res, err = svc.Validate(ctx, "num")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "12.5", res.Discount.String())

	for _, code := range []string{"OFF", "HUGE", "PAUSED", "UNKNOWN"} {
		res, err := svc.Validate(ctx, code)
		require.NoError(t, err, code)
		assert.False(t, res.Valid, code)
	}

	assert.Equal(t, "Affiliates", lister.tables[0])
}

func TestAffiliateValidate_Errors(t *testing.T) {
	svc := NewAffiliateService(&fakeLister{err: errors.New("boom")}, "Affiliates")

	_, err := svc.Validate(context.Background(), "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Validate(context.Background(), "SAVE10")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)
}
