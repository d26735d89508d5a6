package decimal

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	shopspring "github.com/shopspring/decimal"

	"github.com/uhyunpark/hyperdex/pkg/app/core/fault"
)

var symbolCodeRe = regexp.MustCompile(`^[A-Z]{1,7}$`)

// Symbol is a token code together with its number of decimal digits.
type Symbol struct {
	Code      string `json:"code"`
	Precision uint8  `json:"precision"`
}

// NewSymbol validates and returns a symbol such as (BTC, 8).
func NewSymbol(code string, precision uint8) (Symbol, error) {
	s := Symbol{Code: code, Precision: precision}
	return s, s.Validate()
}

// MustSymbol is NewSymbol for constants and tests.
func MustSymbol(code string, precision uint8) Symbol {
	s, err := NewSymbol(code, precision)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Symbol) Validate() error {
	if !symbolCodeRe.MatchString(s.Code) {
		return fault.Validationf("invalid symbol code %q", s.Code)
	}
	if s.Precision > MaxPrecision {
		return fault.Validationf("symbol %s precision %d exceeds max %d", s.Code, s.Precision, MaxPrecision)
	}
	return nil
}

// ParseSymbol parses the "8,BTC" form produced by String.
func ParseSymbol(v string) (Symbol, error) {
	prec, code, ok := strings.Cut(v, ",")
	if !ok {
		return Symbol{}, fault.Validationf("invalid symbol %q: want \"<precision>,<code>\"", v)
	}
	n, err := strconv.ParseUint(prec, 10, 8)
	if err != nil {
		return Symbol{}, fault.Validationf("invalid symbol precision %q", prec)
	}
	return NewSymbol(code, uint8(n))
}

func (s Symbol) String() string {
	return fmt.Sprintf("%d,%s", s.Precision, s.Code)
}

// Asset is an amount of a symbol in the symbol's smallest unit.
type Asset struct {
	Amount int64  `json:"amount"`
	Symbol Symbol `json:"symbol"`
}

// Zero returns an empty quantity of sym.
func Zero(sym Symbol) Asset {
	return Asset{Symbol: sym}
}

// ParseAsset parses "0.01000000 BTC". The number of fraction digits defines
// the symbol precision.
func ParseAsset(s string) (Asset, error) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return Asset{}, fault.Validationf("invalid asset %q: want \"<amount> <code>\"", s)
	}
	precision := 0
	if i := strings.IndexByte(parts[0], '.'); i >= 0 {
		precision = len(parts[0]) - i - 1
	}
	if precision > MaxPrecision {
		return Asset{}, fault.Validationf("invalid asset %q: too many fraction digits", s)
	}
	sym, err := NewSymbol(parts[1], uint8(precision))
	if err != nil {
		return Asset{}, err
	}
	return ParseAmount(parts[0], sym)
}

// ParseAmount parses a decimal string into sym units. The string must not
// carry more fraction digits than sym allows.
func ParseAmount(s string, sym Symbol) (Asset, error) {
	d, err := shopspring.NewFromString(s)
	if err != nil {
		return Asset{}, fault.Validationf("invalid amount %q: %v", s, err)
	}
	units := d.Shift(int32(sym.Precision))
	if !units.IsInteger() {
		return Asset{}, fault.Validationf("amount %q exceeds %s precision", s, sym)
	}
	if units.GreaterThan(shopspring.NewFromInt(math.MaxInt64)) || units.LessThan(shopspring.NewFromInt(math.MinInt64)) {
		return Asset{}, fault.Validationf("amount %q out of range", s)
	}
	return Asset{Amount: units.IntPart(), Symbol: sym}, nil
}

// Decimal returns the amount as a human-scale decimal.
func (a Asset) Decimal() shopspring.Decimal {
	return shopspring.New(a.Amount, -int32(a.Symbol.Precision))
}

// AmountString renders the amount with exactly Precision fraction digits.
func (a Asset) AmountString() string {
	return a.Decimal().StringFixed(int32(a.Symbol.Precision))
}

func (a Asset) String() string {
	return a.AmountString() + " " + a.Symbol.Code
}

func (a Asset) IsZero() bool     { return a.Amount == 0 }
func (a Asset) IsPositive() bool { return a.Amount > 0 }

// Add returns a+b. Mixing symbols panics with an invariant fault.
func (a Asset) Add(b Asset) Asset {
	mustSameSymbol(a.Symbol, b.Symbol)
	if (b.Amount > 0 && a.Amount > math.MaxInt64-b.Amount) || (b.Amount < 0 && a.Amount < math.MinInt64-b.Amount) {
		panic(fault.Invariantf("asset add overflow: %s + %s", a, b))
	}
	return Asset{Amount: a.Amount + b.Amount, Symbol: a.Symbol}
}

// Sub returns a-b. Mixing symbols panics with an invariant fault.
func (a Asset) Sub(b Asset) Asset {
	return a.Add(Asset{Amount: -b.Amount, Symbol: b.Symbol})
}

// Cmp compares a and b, which must share a symbol.
func (a Asset) Cmp(b Asset) int {
	mustSameSymbol(a.Symbol, b.Symbol)
	switch {
	case a.Amount < b.Amount:
		return -1
	case a.Amount > b.Amount:
		return 1
	}
	return 0
}

// Min returns the smaller of a and b.
func Min(a, b Asset) Asset {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

func mustSameSymbol(a, b Symbol) {
	if a != b {
		panic(fault.Invariantf("symbol mismatch: %s vs %s", a, b))
	}
}
