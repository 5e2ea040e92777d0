package stock

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ValidationError reports a malformed request. Storage is never touched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type InvalidChangeTypeError struct {
	ChangeType string
}

func (e *InvalidChangeTypeError) Error() string {
	return fmt.Sprintf("Invalid change type %q", e.ChangeType)
}

// NotFoundError covers unknown ids and, for products, inactive ones.
type NotFoundError struct {
	Resource string
	ID       uuid.UUID
}

func (e *NotFoundError) Error() string {
	if e.Resource == "product" {
		return "Product not found or inactive"
	}
	return fmt.Sprintf("%s not found", capitalize(e.Resource))
}

// InsufficientStockError leaves the product untouched.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Before    int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock. Current quantity: %d, requested change: %d", e.Before, e.Requested)
}

// TransactionError is a datastore failure; the whole unit of work was rolled
// back and the caller may retry it.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// BatchFailedError is returned when no item of a bulk request succeeded.
type BatchFailedError struct {
	Errors []ItemError
}

func (e *BatchFailedError) Error() string {
	return "All updates failed"
}

// errStaleVersion means another writer committed between our read and write.
var errStaleVersion = errors.New("product was modified concurrently")

// IsClientError reports whether err is the caller's fault (a 4xx outcome).
func IsClientError(err error) bool {
	var (
		ve *ValidationError
		ct *InvalidChangeTypeError
		nf *NotFoundError
		is *InsufficientStockError
		bf *BatchFailedError
	)
	return errors.As(err, &ve) || errors.As(err, &ct) || errors.As(err, &nf) ||
		errors.As(err, &is) || errors.As(err, &bf)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
