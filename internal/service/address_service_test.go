package service

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/fedex"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleAddress = AddressRequest{Address: "1 main st", City: "austin", State: "tx", Zip: "78701"}

func TestAddressValidate_WithoutCarrier(t *testing.T) {
	svc := NewAddressService(nil, nil)

	res, err := svc.Validate(context.Background(), sampleAddress)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.False(t, res.Validated)
	assert.Equal(t, "TX", res.Address.State)
}

func TestAddressValidate_Resolved(t *testing.T) {
	resolver := &fakeResolver{res: &fedex.Resolution{
		Valid:          true,
		Classification: "RESIDENTIAL",
		Address:        fedex.Address{Street: "1 MAIN ST", City: "AUSTIN", State: "TX", Zip: "78701-1234", Country: "US"},
	}}
	svc := NewAddressService(resolver, nil)

	res, err := svc.Validate(context.Background(), sampleAddress)
	require.NoError(t, err)
	assert.True(t, res.Validated)
	assert.Equal(t, "78701-1234", res.Address.Zip)
	assert.Equal(t, "RESIDENTIAL", res.Classification)
	require.Len(t, resolver.got, 1)
	assert.Equal(t, "US", resolver.got[0].Country)
}

func TestAddressValidate_CarrierFailureDegrades(t *testing.T) {
	svc := NewAddressService(&fakeResolver{err: errors.New("timeout")}, nil)

	res, err := svc.Validate(context.Background(), sampleAddress)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.False(t, res.Validated)
}

func TestAddressValidate_RejectsBadZip(t *testing.T) {
	svc := NewAddressService(nil, nil)
	req := sampleAddress
	req.Zip = "ABCDE"

	_, err := svc.Validate(context.Background(), req)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestShippingRates(t *testing.T) {
	carts, _ := newTestCartService(product("p1", "10"))
	ctx := context.Background()
	_, err := carts.Add(ctx, "s1", AddToCartRequest{ProductID: "p1", Quantity: 6})
	require.NoError(t, err)

	quote, err := NewAddressService(nil, carts).ShippingRates(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 6, quote.ItemCount)
	require.Len(t, quote.Rates, 1)
	assert.Equal(t, "25.00", quote.Rates[0].Price.StringFixed(2))
}
