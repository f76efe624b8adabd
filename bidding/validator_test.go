package bidding

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surajvsk/ipo-subbrocker/models"
)

func validationCodes(t *testing.T, err error) []string {
	t.Helper()
	verrs, ok := err.(ValidationErrors)
	require.True(t, ok, "expected ValidationErrors, got %T", err)
	codes := make([]string, len(verrs))
	for i, v := range verrs {
		codes[i] = v.Code
	}
	return codes
}

func TestValidateBidReferenceScenarios(t *testing.T) {
	ipo := referenceIPO()

	t.Run("quantity not a lot multiple", func(t *testing.T) {
		_, err := ValidateBid(ipo, BidTerms{Category: models.BidCategoryRetail, Quantity: 25, Price: priceOf(105)})
		require.Error(t, err)
		assert.Equal(t, []string{CodeQuantityLotMultiple}, validationCodes(t, err))
		assert.Equal(t, []interface{}{10}, err.(ValidationErrors)[0].Params)
	})

	t.Run("retail lots exceeded", func(t *testing.T) {
		_, err := ValidateBid(ipo, BidTerms{Category: models.BidCategoryRetail, Quantity: 60, Price: priceOf(105)})
		require.Error(t, err)
		assert.Equal(t, []string{CodeRetailLotExceeded}, validationCodes(t, err))
		assert.Equal(t, []interface{}{5}, err.(ValidationErrors)[0].Params)
	})

	t.Run("accepted with computed amount", func(t *testing.T) {
		accepted, err := ValidateBid(ipo, BidTerms{Category: models.BidCategoryRetail, Quantity: 50, Price: priceOf(105)})
		require.NoError(t, err)
		assert.Equal(t, 50, accepted.Quantity)
		assert.Equal(t, 5, accepted.Lots)
		assert.True(t, accepted.Price.Equal(decimal.NewFromInt(105)))
		assert.True(t, accepted.Amount.Equal(decimal.NewFromInt(5250)), "amount was %s", accepted.Amount)
	})
}

func TestValidateBidCollectsEveryViolation(t *testing.T) {
	ipo := referenceIPO()

	_, err := ValidateBid(ipo, BidTerms{Category: models.BidCategoryRetail, Quantity: 65, Price: priceOf(120)})
	require.Error(t, err)
	assert.ElementsMatch(t,
		[]string{CodeQuantityLotMultiple, CodeRetailLotExceeded, CodePriceOutOfBand},
		validationCodes(t, err))
}

func TestValidateBidEdgeCases(t *testing.T) {
	ipo := referenceIPO()

	t.Run("missing ipo", func(t *testing.T) {
		_, err := ValidateBid(nil, BidTerms{Category: models.BidCategoryRetail, Quantity: 10, Price: priceOf(100)})
		assert.Equal(t, []string{CodeIPORequired}, validationCodes(t, err))
	})

	t.Run("zero quantity", func(t *testing.T) {
		_, err := ValidateBid(ipo, BidTerms{Category: models.BidCategoryRetail, Quantity: 0, Price: priceOf(100)})
		assert.Equal(t, []string{CodeQuantityPositive}, validationCodes(t, err))
	})

	t.Run("missing price without cutoff", func(t *testing.T) {
		_, err := ValidateBid(ipo, BidTerms{Category: models.BidCategoryRetail, Quantity: 10})
		assert.Equal(t, []string{CodePriceRequired}, validationCodes(t, err))
	})

	t.Run("band edges are inclusive", func(t *testing.T) {
		for _, price := range []int64{100, 110} {
			_, err := ValidateBid(ipo, BidTerms{Category: models.BidCategoryRetail, Quantity: 10, Price: priceOf(price)})
			assert.NoError(t, err, "price %d", price)
		}
	})

	t.Run("fractional price", func(t *testing.T) {
		for _, raw := range []string{"100.005", "105.5", "109.99"} {
			price := decimal.RequireFromString(raw)
			_, err := ValidateBid(ipo, BidTerms{Category: models.BidCategoryRetail, Quantity: 10, Price: &price})
			assert.Equal(t, []string{CodePricePrecision}, validationCodes(t, err), "price %s", raw)
		}

		price := decimal.RequireFromString("105.00")
		accepted, err := ValidateBid(ipo, BidTerms{Category: models.BidCategoryRetail, Quantity: 10, Price: &price})
		require.NoError(t, err)
		assert.True(t, accepted.Amount.Equal(decimal.NewFromInt(1050)))
	})

	t.Run("hni amount exceeded", func(t *testing.T) {
		_, err := ValidateBid(ipo, BidTerms{Category: models.BidCategoryHNI, Quantity: 10000, Price: priceOf(105)})
		assert.Equal(t, []string{CodeHNIAmountExceeded}, validationCodes(t, err))
	})

	t.Run("hni ignores retail lot cap", func(t *testing.T) {
		accepted, err := ValidateBid(ipo, BidTerms{Category: models.BidCategoryHNI, Quantity: 2000, Price: priceOf(110)})
		require.NoError(t, err)
		assert.True(t, accepted.Amount.Equal(decimal.NewFromInt(220000)))
	})

	t.Run("unknown category", func(t *testing.T) {
		_, err := ValidateBid(ipo, BidTerms{Category: "Employee", Quantity: 10, Price: priceOf(100)})
		assert.Equal(t, []string{CodeCategoryInvalid}, validationCodes(t, err))
	})

	t.Run("ipo with broken limits", func(t *testing.T) {
		broken := referenceIPO()
		broken.LotSize = 0
		_, err := ValidateBid(broken, BidTerms{Category: models.BidCategoryRetail, Quantity: 10, Price: priceOf(100)})
		assert.Equal(t, []string{CodeIPOInvalid}, validationCodes(t, err))
	})
}

func TestValidateBidProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("quantity is accepted iff it is a positive lot multiple", prop.ForAll(
		func(lotSize, quantity int) bool {
			ipo := referenceIPO()
			ipo.LotSize = lotSize
			ipo.RetailMaxLot = 1000000

			_, err := ValidateBid(ipo, BidTerms{Category: models.BidCategoryRetail, Quantity: quantity, Price: priceOf(105)})
			expectAccepted := quantity > 0 && quantity%lotSize == 0
			return (err == nil) == expectAccepted
		},
		gen.IntRange(1, 50),
		gen.IntRange(-100, 2000),
	))

	properties.Property("accepted retail bids never exceed retailMaxLot lots", prop.ForAll(
		func(lotSize, retailMaxLot, lots int) bool {
			ipo := referenceIPO()
			ipo.LotSize = lotSize
			ipo.RetailMaxLot = retailMaxLot

			accepted, err := ValidateBid(ipo, BidTerms{Category: models.BidCategoryRetail, Quantity: lots * lotSize, Price: priceOf(100)})
			if lots > retailMaxLot {
				verrs, ok := err.(ValidationErrors)
				return ok && verrs.Has(CodeRetailLotExceeded)
			}
			return err == nil && accepted.Lots == lots && accepted.Lots <= retailMaxLot
		},
		gen.IntRange(1, 100),
		gen.IntRange(1, 20),
		gen.IntRange(1, 40),
	))

	properties.Property("accepted HNI bids stay within hniMaxAmount", prop.ForAll(
		func(lots int, price int64, hniMax int64) bool {
			ipo := referenceIPO()
			ipo.HNIMaxAmount = decimal.NewFromInt(hniMax)

			accepted, err := ValidateBid(ipo, BidTerms{Category: models.BidCategoryHNI, Quantity: lots * ipo.LotSize, Price: priceOf(price)})
			if err != nil {
				verrs, ok := err.(ValidationErrors)
				return ok && verrs.Has(CodeHNIAmountExceeded)
			}
			return !accepted.Amount.GreaterThan(ipo.HNIMaxAmount) &&
				accepted.Amount.Equal(decimal.NewFromInt(int64(accepted.Quantity)*price))
		},
		gen.IntRange(1, 500),
		gen.Int64Range(100, 110),
		gen.Int64Range(1000, 200000),
	))

	properties.Property("cutoff always uses the band maximum", prop.ForAll(
		func(supplied int64, withPrice bool, category bool) bool {
			ipo := referenceIPO()
			terms := BidTerms{Category: models.BidCategoryRetail, Quantity: 20, UseCutoff: true}
			if category {
				terms.Category = models.BidCategoryHNI
			}
			if withPrice {
				terms.Price = priceOf(supplied)
			}

			accepted, err := ValidateBid(ipo, terms)
			return err == nil &&
				accepted.Price.Equal(ipo.PriceBandMax) &&
				accepted.Amount.Equal(ipo.PriceBandMax.Mul(decimal.NewFromInt(20)))
		},
		gen.Int64Range(-1000, 100000),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
