package bidding

import (
	"errors"
	"fmt"
	"strings"
)

// Validation codes reported by ValidateBid and the submitter.
const (
	CodeIPORequired         = "ipo_required"
	CodeIPOInvalid          = "ipo_invalid"
	CodeIPONotOpen          = "ipo_not_open"
	CodeCategoryInvalid     = "category_invalid"
	CodeQuantityPositive    = "quantity_positive"
	CodeQuantityLotMultiple = "quantity_lot_multiple"
	CodeRetailLotExceeded   = "retail_lot_exceeded"
	CodeHNIAmountExceeded   = "hni_amount_exceeded"
	CodePriceRequired       = "price_required"
	CodePriceOutOfBand      = "price_out_of_band"
	CodePricePrecision      = "price_precision"
	CodeNoClientsSelected   = "no_clients_selected"
)

var (
	// ErrDuplicateBid is returned by a BidStore when the (IPO, client code)
	// pair already has a bid.
	ErrDuplicateBid = errors.New("client already has a bid for this IPO")

	// ErrApplicationNumberTaken is returned by a BidStore when the generated
	// application number collides with a stored one.
	ErrApplicationNumberTaken = errors.New("application number already in use")
)

// ValidationError is a user-correctable input problem. Params carries the
// limit that was violated so a caller can render it next to Field.
type ValidationError struct {
	Code   string        `json:"code"`
	Field  string        `json:"field"`
	Params []interface{} `json:"params,omitempty"`
}

func (e ValidationError) Error() string {
	switch e.Code {
	case CodeIPORequired:
		return "an IPO must be selected"
	case CodeIPOInvalid:
		return fmt.Sprintf("IPO limits are invalid: %v", e.Params)
	case CodeIPONotOpen:
		return fmt.Sprintf("IPO is not open for bidding (status %v)", e.Params...)
	case CodeCategoryInvalid:
		return fmt.Sprintf("category must be Retail or HNI, got %v", e.Params)
	case CodeQuantityPositive:
		return "quantity must be greater than zero"
	case CodeQuantityLotMultiple:
		return fmt.Sprintf("quantity must be a multiple of lot size %v", e.Params...)
	case CodeRetailLotExceeded:
		return fmt.Sprintf("retail bids may not exceed %v lots", e.Params...)
	case CodeHNIAmountExceeded:
		return fmt.Sprintf("HNI bid amount may not exceed %v", e.Params...)
	case CodePriceRequired:
		return "price is required unless bidding at cutoff"
	case CodePriceOutOfBand:
		return fmt.Sprintf("price must be between %v and %v", e.Params...)
	case CodePricePrecision:
		return "price must be a whole number of rupees"
	case CodeNoClientsSelected:
		return "select at least one client"
	}
	return e.Code
}

// ValidationErrors collects every rule a request broke.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	messages := make([]string, len(errs))
	for i, err := range errs {
		messages[i] = err.Error()
	}
	return "validation failed: " + strings.Join(messages, "; ")
}

// Has reports whether code is among the collected errors.
func (errs ValidationErrors) Has(code string) bool {
	for _, err := range errs {
		if err.Code == code {
			return true
		}
	}
	return false
}

// FetchError means an upstream read failed and the operation was abandoned
// before any write.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// WriteError is one client's failed bid creation.
type WriteError struct {
	ClientCode string
	Err        error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to create bid for client %s: %v", e.ClientCode, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// NotFoundError means a referenced IPO, client or bid does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}
