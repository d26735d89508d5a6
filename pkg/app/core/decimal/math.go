// Package decimal implements exact scaled-integer arithmetic for token
// quantities and prices.
//
// Every quantity is an int64 number of the token's smallest unit. Products and
// quotients go through a 256-bit intermediate so a*b never overflows before
// the precision shift is removed. All division truncates toward zero.
package decimal

import (
	"math"

	"github.com/holiman/uint256"

	"github.com/uhyunpark/hyperdex/pkg/app/core/fault"
)

const (
	// MaxPrecision is the largest supported number of decimal digits.
	MaxPrecision = 18

	// RatioPrecision is the scale of fee ratios: a ratio of 8 means 8/10000.
	RatioPrecision int64 = 10000
)

var pow10 = func() [MaxPrecision + 1]int64 {
	var p [MaxPrecision + 1]int64
	p[0] = 1
	for i := 1; i <= MaxPrecision; i++ {
		p[i] = p[i-1] * 10
	}
	return p
}()

// CalcPrecision returns 10^digits.
func CalcPrecision(digits uint8) (int64, error) {
	if digits > MaxPrecision {
		return 0, fault.Validationf("precision digit %d exceeds max %d", digits, MaxPrecision)
	}
	return pow10[digits], nil
}

func mustPrecision(digits uint8) int64 {
	p, err := CalcPrecision(digits)
	if err != nil {
		panic(fault.Invariantf("%v", err))
	}
	return p
}

// ScaleMul returns a*b/precision, truncated toward zero.
func ScaleMul(a, b, precision int64) (int64, error) {
	if precision <= 0 {
		return 0, fault.Invariantf("scale_mul: precision must be positive, got %d", precision)
	}
	return mulDiv(a, b, precision)
}

// ScaleDiv returns a*precision/b, truncated toward zero.
func ScaleDiv(a, b, precision int64) (int64, error) {
	if b == 0 {
		return 0, fault.Invariantf("scale_div: divide by zero")
	}
	if precision <= 0 {
		return 0, fault.Invariantf("scale_div: precision must be positive, got %d", precision)
	}
	return mulDiv(a, precision, b)
}

func mulDiv(a, b, d int64) (int64, error) {
	ua, na := abs(a)
	ub, nb := abs(b)
	ud, nd := abs(d)

	z, overflow := new(uint256.Int).MulDivOverflow(uint256.NewInt(ua), uint256.NewInt(ub), uint256.NewInt(ud))
	if overflow || !z.IsUint64() {
		return 0, fault.Invariantf("mul_div: %d*%d/%d overflows", a, b, d)
	}

	r := z.Uint64()
	if r == 0 {
		return 0, nil
	}
	if na != nb != nd {
		if r > uint64(math.MaxInt64)+1 {
			return 0, fault.Invariantf("mul_div: %d*%d/%d overflows", a, b, d)
		}
		return -int64(r-1) - 1, nil
	}
	if r > math.MaxInt64 {
		return 0, fault.Invariantf("mul_div: %d*%d/%d overflows", a, b, d)
	}
	return int64(r), nil
}

func abs(v int64) (uint64, bool) {
	if v < 0 {
		return uint64(-(v + 1)) + 1, true
	}
	return uint64(v), false
}

// CalcCoinAmount converts an asset quantity into coins at price.
//
// price is denominated in the coin symbol and quotes one whole asset unit, so
// coins = assets * price / 10^asset_precision. The product is exact in the
// wide intermediate; only the final shift truncates.
func CalcCoinAmount(assets, price Asset) (Asset, error) {
	amount, err := ScaleMul(assets.Amount, price.Amount, mustPrecision(assets.Symbol.Precision))
	if err != nil {
		return Asset{}, err
	}
	return Asset{Amount: amount, Symbol: price.Symbol}, nil
}

// CalcAssetAmount converts a coin quantity into asset units at price.
func CalcAssetAmount(coins, price Asset, assetSym Symbol) (Asset, error) {
	mustSameSymbol(coins.Symbol, price.Symbol)
	if price.Amount <= 0 {
		return Asset{}, fault.Invariantf("calc_asset_amount: price must be positive, got %s", price)
	}
	amount, err := ScaleDiv(coins.Amount, price.Amount, mustPrecision(assetSym.Precision))
	if err != nil {
		return Asset{}, err
	}
	return Asset{Amount: amount, Symbol: assetSym}, nil
}

// CalcMatchFee returns floor(quant * ratio / RatioPrecision) in quant's symbol.
// A fee that would consume the whole quantity is an invariant fault.
func CalcMatchFee(ratio int64, quant Asset) (Asset, error) {
	fee := Asset{Symbol: quant.Symbol}
	if quant.Amount == 0 {
		return fee, nil
	}
	if ratio < 0 || ratio >= RatioPrecision {
		return fee, fault.Invariantf("calc_match_fee: ratio %d out of range", ratio)
	}
	amount, err := ScaleMul(quant.Amount, ratio, RatioPrecision)
	if err != nil {
		return fee, err
	}
	if amount >= quant.Amount {
		return fee, fault.Invariantf("calc_match_fee: fee %d must be less than quantity %d", amount, quant.Amount)
	}
	fee.Amount = amount
	return fee, nil
}
