package service

import (
	"context"
	"strings"

	"storefront/internal/fedex"
	"storefront/internal/pricing"
	"storefront/internal/util"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AddressResolver resolves postal addresses with a carrier.
type AddressResolver interface {
	ResolveAddress(ctx context.Context, addr fedex.Address) (*fedex.Resolution, error)
}

type AddressRequest struct {
	Address string `json:"address" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required,len=2,alpha"`
	Zip     string `json:"zip" validate:"required,zip"`
	Country string `json:"country"`
}

// AddressValidation is the answer to POST /api/validate-address.
// Validated is false when no carrier check took place.
type AddressValidation struct {
	Valid          bool           `json:"valid"`
	Validated      bool           `json:"validated"`
	Address        AddressRequest `json:"resolvedAddress"`
	Classification string         `json:"classification,omitempty"`
}

// ShippingRate is one selectable shipping option.
type ShippingRate struct {
	Method string          `json:"method"`
	Label  string          `json:"label"`
	Price  decimal.Decimal `json:"price"`
}

// ShippingQuote is the answer to POST /api/shipping-rates.
type ShippingQuote struct {
	ItemCount int            `json:"itemCount"`
	Rates     []ShippingRate `json:"rates"`
}

// AddressService validates addresses and quotes shipping.
type AddressService struct {
	resolver AddressResolver
	carts    *CartService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewAddressService creates an address service; resolver may be nil.
func NewAddressService(resolver AddressResolver, carts *CartService) *AddressService {
	return &AddressService{
		resolver: resolver,
		carts:    carts,
		validate: newValidator(),
		logger:   util.GetLogger(),
	}
}

// Validate checks the address format and, when a carrier is configured,
// resolves it. Carrier failures degrade to an unvalidated pass.
func (s *AddressService) Validate(ctx context.Context, req AddressRequest) (*AddressValidation, error) {
	ctx, span := util.StartSpan(ctx, "AddressService.Validate")
	defer span.End()

	req.Address = strings.TrimSpace(req.Address)
	req.City = strings.TrimSpace(req.City)
	req.State = strings.ToUpper(strings.TrimSpace(req.State))
	req.Zip = strings.TrimSpace(req.Zip)
	req.Country = strings.ToUpper(strings.TrimSpace(req.Country))
	if err := validateStruct(s.validate, req); err != nil {
		return nil, err
	}

	unchecked := &AddressValidation{Valid: true, Address: req}
	if s.resolver == nil {
		return unchecked, nil
	}

	country := req.Country
	if country == "" {
		country = "US"
	}
	res, err := s.resolver.ResolveAddress(ctx, fedex.Address{
		Street:  req.Address,
		City:    req.City,
		State:   req.State,
		Zip:     req.Zip,
		Country: country,
	})
	if err != nil {
		s.logger.Warn("Address resolution failed, accepting input",
			zap.String("zip", req.Zip),
			zap.Error(err))
		return unchecked, nil
	}

	out := &AddressValidation{
		Valid:          res.Valid,
		Validated:      true,
		Address:        req,
		Classification: res.Classification,
	}
	if res.Valid {
		out.Address = AddressRequest{
			Address: firstNonEmpty(res.Address.Street, req.Address),
			City:    firstNonEmpty(res.Address.City, req.City),
			State:   firstNonEmpty(res.Address.State, req.State),
			Zip:     firstNonEmpty(res.Address.Zip, req.Zip),
			Country: firstNonEmpty(res.Address.Country, req.Country),
		}
	}
	return out, nil
}

// ShippingRates quotes the flat tier for the session cart.
func (s *AddressService) ShippingRates(ctx context.Context, sessionID string) (*ShippingQuote, error) {
	view, err := s.carts.View(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &ShippingQuote{
		ItemCount: view.ItemCount,
		Rates: []ShippingRate{{
			Method: "standard",
			Label:  "Standard shipping",
			Price:  pricing.ShippingFor(view.ItemCount),
		}},
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
