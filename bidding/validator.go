package bidding

import (
	"github.com/shopspring/decimal"
	"github.com/surajvsk/ipo-subbrocker/models"
)

// BidTerms is the per-application part of a bid request. Price is ignored
// when UseCutoff is set.
type BidTerms struct {
	Category  models.BidCategory `json:"category"`
	Quantity  int                `json:"quantity"`
	Price     *decimal.Decimal   `json:"price,omitempty"`
	UseCutoff bool               `json:"use_cutoff"`
}

// Accepted is a bid that passed every rule, with the price normalised.
type Accepted struct {
	Category  models.BidCategory `json:"category"`
	Quantity  int                `json:"quantity"`
	Lots      int                `json:"lots"`
	Price     decimal.Decimal    `json:"price"`
	Amount    decimal.Decimal    `json:"amount"`
	UseCutoff bool               `json:"use_cutoff"`
}

// ValidateBid checks terms against the IPO's limits. Every violated rule is
// reported; the returned error is always a ValidationErrors when non-nil.
func ValidateBid(ipo *models.IPO, terms BidTerms) (*Accepted, error) {
	if ipo == nil {
		return nil, ValidationErrors{{Code: CodeIPORequired, Field: "ipo"}}
	}
	if problems := ipo.LimitViolations(); len(problems) > 0 {
		params := make([]interface{}, len(problems))
		for i, p := range problems {
			params[i] = p
		}
		return nil, ValidationErrors{{Code: CodeIPOInvalid, Field: "ipo", Params: params}}
	}

	var errs ValidationErrors
	if !terms.Category.Valid() {
		errs = append(errs, ValidationError{Code: CodeCategoryInvalid, Field: "category", Params: []interface{}{string(terms.Category)}})
	}

	quantity := terms.Quantity
	if quantity <= 0 {
		errs = append(errs, ValidationError{Code: CodeQuantityPositive, Field: "quantity"})
	}
	if quantity%ipo.LotSize != 0 {
		errs = append(errs, ValidationError{Code: CodeQuantityLotMultiple, Field: "quantity", Params: []interface{}{ipo.LotSize}})
	}
	// quantity/lotSize > retailMaxLot without integer truncation
	if terms.Category == models.BidCategoryRetail && quantity > ipo.RetailMaxLot*ipo.LotSize {
		errs = append(errs, ValidationError{Code: CodeRetailLotExceeded, Field: "quantity", Params: []interface{}{ipo.RetailMaxLot}})
	}

	var price decimal.Decimal
	havePrice := false
	switch {
	case terms.UseCutoff:
		price, havePrice = ipo.PriceBandMax, true
	case terms.Price == nil:
		errs = append(errs, ValidationError{Code: CodePriceRequired, Field: "price"})
	default:
		price, havePrice = *terms.Price, true
		if price.LessThan(ipo.PriceBandMin) || price.GreaterThan(ipo.PriceBandMax) {
			errs = append(errs, ValidationError{
				Code:   CodePriceOutOfBand,
				Field:  "price",
				Params: []interface{}{ipo.PriceBandMin.String(), ipo.PriceBandMax.String()},
			})
		}
		// bands are whole rupees, and so are bid prices
		if !price.Equal(price.Truncate(0)) {
			errs = append(errs, ValidationError{Code: CodePricePrecision, Field: "price", Params: []interface{}{price.String()}})
		}
	}

	amount := price.Mul(decimal.NewFromInt(int64(quantity)))
	if terms.Category == models.BidCategoryHNI && havePrice && amount.GreaterThan(ipo.HNIMaxAmount) {
		errs = append(errs, ValidationError{Code: CodeHNIAmountExceeded, Field: "amount", Params: []interface{}{ipo.HNIMaxAmount.String()}})
	}

	if len(errs) > 0 {
		return nil, errs
	}

	return &Accepted{
		Category:  terms.Category,
		Quantity:  quantity,
		Lots:      quantity / ipo.LotSize,
		Price:     price,
		Amount:    amount,
		UseCutoff: terms.UseCutoff,
	}, nil
}
