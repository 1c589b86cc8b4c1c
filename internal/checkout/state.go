// Package checkout models the checkout flow as an explicit state machine.
// The State value lives in the customer's session; every step moves it
// through Transition, which rejects skipped or replayed steps.
package checkout

import (
	"errors"
	"fmt"

	"storefront/internal/pricing"

	"github.com/shopspring/decimal"
)

// Status is the checkout step a session has reached.
type Status string

const (
	StatusStarted           Status = "started"
	StatusPersonalInfo      Status = "personal_info"
	StatusShippingInfo      Status = "shipping_info"
	StatusPaymentSelection  Status = "payment_selection"
	StatusPaymentProcessing Status = "payment_processing"
	StatusCompleted         Status = "completed"
	StatusAbandoned         Status = "abandoned"
)

// ErrIllegalTransition is returned when a step is submitted out of order.
var ErrIllegalTransition = errors.New("illegal checkout transition")

var transitions = map[Status][]Status{
	StatusStarted:           {StatusPersonalInfo, StatusAbandoned},
	StatusPersonalInfo:      {StatusPersonalInfo, StatusShippingInfo, StatusAbandoned},
	StatusShippingInfo:      {StatusPersonalInfo, StatusShippingInfo, StatusPaymentSelection, StatusAbandoned},
	StatusPaymentSelection:  {StatusPersonalInfo, StatusShippingInfo, StatusPaymentSelection, StatusPaymentProcessing, StatusAbandoned},
	StatusPaymentProcessing: {StatusPaymentSelection, StatusCompleted, StatusAbandoned},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusStarted, StatusPersonalInfo, StatusShippingInfo, StatusPaymentSelection,
		StatusPaymentProcessing, StatusCompleted, StatusAbandoned:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates from -> to.
func Transition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return nil
}

// PersonalInfo is the first step's payload.
type PersonalInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// ShippingInfo is the second step's payload.
type ShippingInfo struct {
	Address       string          `json:"address"`
	City          string          `json:"city"`
	State         string          `json:"state"`
	Zip           string          `json:"zip"`
	Country       string          `json:"country,omitempty"`
	Method        string          `json:"method"`
	ShippingPrice decimal.Decimal `json:"shippingPrice"`
}

// PaymentInfo is the third step's payload.
type PaymentInfo struct {
	Method          string          `json:"method"`
	Total           decimal.Decimal `json:"total"`
	PaymentIntentID string          `json:"paymentIntentId,omitempty"`
}

// Discount is the validated affiliate code applied to the session.
type Discount struct {
	Code    string          `json:"code"`
	Percent decimal.Decimal `json:"percent"`
	Name    string          `json:"name,omitempty"`
}

// State is the checkout stored in the session.
type State struct {
	CheckoutID string          `json:"checkoutId"`
	Persisted  bool            `json:"persisted"`
	Status     Status          `json:"status"`
	Personal   *PersonalInfo   `json:"personal,omitempty"`
	Shipping   *ShippingInfo   `json:"shipping,omitempty"`
	Payment    *PaymentInfo    `json:"payment,omitempty"`
	Discount   *Discount       `json:"discount,omitempty"`
	OrderID    string          `json:"orderId,omitempty"`
	Totals     *pricing.Totals `json:"totals,omitempty"`
}

// New returns a freshly started checkout.
func New(checkoutID string, persisted bool) *State {
	return &State{
		CheckoutID: checkoutID,
		Persisted:  persisted,
		Status:     StatusStarted,
	}
}

// Advance moves the state to next if the transition is legal.
func (s *State) Advance(next Status) error {
	if s == nil {
		return fmt.Errorf("%w: checkout not initialized", ErrIllegalTransition)
	}
	if err := Transition(s.Status, next); err != nil {
		return err
	}
	s.Status = next
	return nil
}

// SetDiscount replaces the applied discount; percentages are never accumulated.
func (s *State) SetDiscount(d *Discount) {
	s.Discount = d
}

// DiscountPercent returns the applied percentage or zero.
func (s *State) DiscountPercent() decimal.Decimal {
	if s == nil || s.Discount == nil {
		return decimal.Zero
	}
	return s.Discount.Percent
}
