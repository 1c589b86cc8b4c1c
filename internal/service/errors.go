package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks caller mistakes; the API answers 400.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks unknown resources; the API answers 404.
	ErrNotFound = errors.New("not found")

	ErrEmptyCart           = fmt.Errorf("%w: cart is empty", ErrValidation)
	ErrProductUnavailable  = fmt.Errorf("%w: product no longer available", ErrValidation)
	ErrInvalidDiscount     = fmt.Errorf("%w: invalid discount code", ErrValidation)
	ErrPaymentNotCompleted = fmt.Errorf("%w: payment has not completed", ErrValidation)
	ErrUnsupportedPayment  = fmt.Errorf("%w: unsupported payment method", ErrValidation)
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
