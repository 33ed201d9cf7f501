package oracle

import (
	"errors"
	"math/big"
	"strings"
)

var (
	// ErrAssetNotInFeed indicates the requested asset does not match the
	// feed's token identity.
	ErrAssetNotInFeed = errors.New("oracle: asset not present in price feed")
	// ErrInsufficientLiquidity indicates a pooled feed cannot quote the
	// requested amount because it meets or exceeds the in-side reserve.
	ErrInsufficientLiquidity = errors.New("oracle: insufficient feed liquidity")

	errNilAmount = errors.New("oracle: amount must be non-nil")
)

// Asset identifies a native asset by minting policy and name. The zero value
// is the reference asset (the unit all feed conversions quote against).
type Asset struct {
	PolicyID string `json:"policyId"`
	Name     string `json:"name"`
}

// IsReference reports whether the asset is the reference asset itself.
// Reference amounts never pass through a feed.
func (a Asset) IsReference() bool {
	return a.PolicyID == ""
}

// Equal compares two asset identities.
func (a Asset) Equal(other Asset) bool {
	return a.PolicyID == other.PolicyID && a.Name == other.Name
}

// Unit renders the canonical policy.name form used for storage keys and logs.
func (a Asset) Unit() string {
	if a.IsReference() {
		return "reference"
	}
	if strings.TrimSpace(a.Name) == "" {
		return a.PolicyID
	}
	return a.PolicyID + "." + a.Name
}

type feedKind uint8

const (
	feedAggregated feedKind = iota
	feedPooled
)

// Feed is a signed oracle observation for one asset against the reference
// asset. Exactly two variants exist and the validator logic is
// variant-exhaustive, so the type is a closed tagged union: Aggregated
// carries a direct price ratio, Pooled carries an AMM reserve pair implying a
// constant-product price curve with a 0.3% swap fee.
type Feed struct {
	kind  feedKind
	token Asset

	// Aggregated variant.
	priceNumerator   *big.Int
	priceDenominator *big.Int

	// Pooled variant. ReserveA is the token side, ReserveB the reference side.
	reserveA *big.Int
	reserveB *big.Int

	// validTo is the expiry timestamp in POSIX milliseconds.
	validTo int64
}

// NewAggregated constructs a direct-ratio feed quoting token at
// numerator/denominator reference units per token unit.
func NewAggregated(token Asset, numerator, denominator *big.Int, validTo int64) Feed {
	return Feed{
		kind:             feedAggregated,
		token:            token,
		priceNumerator:   cloneInt(numerator),
		priceDenominator: cloneInt(denominator),
		validTo:          validTo,
	}
}

// NewPooled constructs a constant-product feed from an AMM reserve snapshot.
// reserveA is the token reserve, reserveB the reference asset reserve.
func NewPooled(token Asset, reserveA, reserveB *big.Int, validTo int64) Feed {
	return Feed{
		kind:     feedPooled,
		token:    token,
		reserveA: cloneInt(reserveA),
		reserveB: cloneInt(reserveB),
		validTo:  validTo,
	}
}

// Token returns the asset the feed quotes.
func (f Feed) Token() Asset { return f.token }

// ValidTo returns the expiry timestamp in POSIX milliseconds.
func (f Feed) ValidTo() int64 { return f.validTo }

// Expired reports whether the feed has passed its expiry at the supplied
// POSIX millisecond timestamp. Conversions do not re-check freshness; that is
// the caller's obligation before valuation.
func (f Feed) Expired(nowMs int64) bool {
	return f.validTo < nowMs
}

// Swap fee constants for the constant-product variant: a 0.3% fee charged on
// the incoming leg, expressed as 997/1000.
var (
	feeScale     = big.NewInt(1000)
	feeRetention = big.NewInt(997)
)

// ValueIfSold returns the reference amount received for selling amount of
// asset into the feed's market.
//
// Aggregated feeds have no spread: floor(amount*num/den). Pooled feeds quote
// the swap output leg: floor(amount*997*reserveB / (reserveA*1000 +
// amount*997)).
func (f Feed) ValueIfSold(asset Asset, amount *big.Int) (*big.Int, error) {
	if amount == nil {
		return nil, errNilAmount
	}
	if !f.token.Equal(asset) {
		return nil, ErrAssetNotInFeed
	}
	switch f.kind {
	case feedAggregated:
		return ratioFloor(amount, f.priceNumerator, f.priceDenominator)
	default:
		numerator := new(big.Int).Mul(amount, feeRetention)
		numerator.Mul(numerator, f.reserveB)
		denominator := new(big.Int).Mul(f.reserveA, feeScale)
		denominator.Add(denominator, new(big.Int).Mul(amount, feeRetention))
		if denominator.Sign() <= 0 {
			return nil, ErrInsufficientLiquidity
		}
		return numerator.Div(numerator, denominator), nil
	}
}

// ValueIfBought returns the reference cost of acquiring amount of asset from
// the feed's market. Used for debt valuation, so it takes the expensive leg
// of the spread.
//
// Aggregated feeds are symmetric. Pooled feeds quote the inverse
// constant-product formula: floor(amount*1000*reserveB /
// ((reserveA-amount)*997)); amount must be strictly below the token reserve.
func (f Feed) ValueIfBought(asset Asset, amount *big.Int) (*big.Int, error) {
	if amount == nil {
		return nil, errNilAmount
	}
	if !f.token.Equal(asset) {
		return nil, ErrAssetNotInFeed
	}
	switch f.kind {
	case feedAggregated:
		return ratioFloor(amount, f.priceNumerator, f.priceDenominator)
	default:
		if f.reserveA == nil || amount.Cmp(f.reserveA) >= 0 {
			return nil, ErrInsufficientLiquidity
		}
		numerator := new(big.Int).Mul(amount, feeScale)
		numerator.Mul(numerator, f.reserveB)
		denominator := new(big.Int).Sub(f.reserveA, amount)
		denominator.Mul(denominator, feeRetention)
		if denominator.Sign() <= 0 {
			return nil, ErrInsufficientLiquidity
		}
		return numerator.Div(numerator, denominator), nil
	}
}

// AssetGainFromSale converts refAmount of the reference asset back into the
// feed's token using the sell leg of the swap. The liquidation engine uses it
// to route leftover collateral value back to the borrower in collateral
// units, so the formula must match ValueIfSold's leg bit for bit.
func (f Feed) AssetGainFromSale(asset Asset, refAmount *big.Int) (*big.Int, error) {
	if refAmount == nil {
		return nil, errNilAmount
	}
	if !f.token.Equal(asset) {
		return nil, ErrAssetNotInFeed
	}
	switch f.kind {
	case feedAggregated:
		// Inverse ratio: floor(refAmount*den/num).
		return ratioFloor(refAmount, f.priceDenominator, f.priceNumerator)
	default:
		numerator := new(big.Int).Mul(refAmount, feeRetention)
		numerator.Mul(numerator, f.reserveB)
		denominator := new(big.Int).Mul(f.reserveA, feeScale)
		denominator.Add(denominator, new(big.Int).Mul(refAmount, feeRetention))
		if denominator.Sign() <= 0 {
			return nil, ErrInsufficientLiquidity
		}
		return numerator.Div(numerator, denominator), nil
	}
}

func ratioFloor(amount, numerator, denominator *big.Int) (*big.Int, error) {
	if denominator == nil || denominator.Sign() == 0 {
		return nil, ErrInsufficientLiquidity
	}
	result := new(big.Int).Mul(amount, numerator)
	return result.Div(result, denominator), nil
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
