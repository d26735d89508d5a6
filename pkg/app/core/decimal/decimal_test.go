package decimal

import (
	"math"
	"testing"

	"github.com/uhyunpark/hyperdex/pkg/app/core/fault"
)

var (
	btc = MustSymbol("BTC", 8)
	usd = MustSymbol("USD", 4)
)

func TestScaleMul(t *testing.T) {
	tests := []struct {
		name      string
		a, b, p   int64
		want      int64
		wantFault bool
	}{
		{"simple", 1_000_000, 100_000_000, 100_000_000, 1_000_000, false},
		{"truncates", 7, 3, 2, 10, false},
		{"negative truncates toward zero", -7, 3, 2, -10, false},
		{"wide intermediate", math.MaxInt64, math.MaxInt64, math.MaxInt64, math.MaxInt64, false},
		{"overflow", math.MaxInt64, 2, 1, 0, true},
		{"zero precision", 1, 1, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ScaleMul(tt.a, tt.b, tt.p)
			if tt.wantFault {
				if !fault.IsInvariant(err) {
					t.Fatalf("err = %v, want invariant fault", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScaleDiv(t *testing.T) {
	got, err := ScaleDiv(1_000_000, 100_000_000, 100_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1_000_000 {
		t.Errorf("got %d, want 1000000", got)
	}

	if got, _ := ScaleDiv(-10, 3, 1); got != -3 {
		t.Errorf("got %d, want -3", got)
	}

	if _, err := ScaleDiv(1, 0, 1); !fault.IsInvariant(err) {
		t.Errorf("divide by zero: err = %v, want invariant fault", err)
	}
}

func TestCalcCoinAndAssetAmount(t *testing.T) {
	// 0.01 BTC @ 10000.0000 USD = 100.0000 USD
	assets := Asset{Amount: 1_000_000, Symbol: btc}
	price := Asset{Amount: 100_000_000, Symbol: usd}

	coins, err := CalcCoinAmount(assets, price)
	if err != nil {
		t.Fatalf("calc coin: %v", err)
	}
	if coins.Amount != 1_000_000 || coins.Symbol != usd {
		t.Fatalf("got %s, want 100.0000 USD", coins)
	}

	back, err := CalcAssetAmount(coins, price, btc)
	if err != nil {
		t.Fatalf("calc asset: %v", err)
	}
	if back != assets {
		t.Errorf("got %s, want %s", back, assets)
	}

	if _, err := CalcAssetAmount(coins, Zero(usd), btc); !fault.IsInvariant(err) {
		t.Errorf("zero price: err = %v, want invariant fault", err)
	}
}

func TestDecimalRoundTrip(t *testing.T) {
	prices := []int64{100_000_000, 123_456_789, 250_000_000_000}
	amounts := []int64{1, 999, 1_000_000, 123_456_789, 2_100_000_000_000_000}
	for _, p := range prices {
		price := Asset{Amount: p, Symbol: usd}
		for _, a := range amounts {
			assets := Asset{Amount: a, Symbol: btc}
			coins, err := CalcCoinAmount(assets, price)
			if err != nil {
				t.Fatalf("calc coin %s @ %s: %v", assets, price, err)
			}
			back, err := CalcAssetAmount(coins, price, btc)
			if err != nil {
				t.Fatalf("calc asset %s @ %s: %v", coins, price, err)
			}
			if diff := assets.Amount - back.Amount; diff < 0 || diff > 1 {
				t.Errorf("%s @ %s: round trip got %s", assets, price, back)
			}
		}
	}
}

func TestCalcMatchFee(t *testing.T) {
	tests := []struct {
		name      string
		ratio     int64
		quant     Asset
		want      int64
		wantFault bool
	}{
		{"maker fee on btc", 4, Asset{Amount: 1_000_000, Symbol: btc}, 400, false},
		{"taker fee on usd", 8, Asset{Amount: 1_000_000, Symbol: usd}, 800, false},
		{"floors", 8, Asset{Amount: 1249, Symbol: usd}, 0, false},
		{"zero quantity", 8, Zero(usd), 0, false},
		{"fee eats everything", 9999, Asset{Amount: 1, Symbol: usd}, 0, false},
		{"ratio too high", RatioPrecision, Asset{Amount: 100, Symbol: usd}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, err := CalcMatchFee(tt.ratio, tt.quant)
			if tt.wantFault {
				if !fault.IsInvariant(err) {
					t.Fatalf("err = %v, want invariant fault", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if fee.Amount != tt.want {
				t.Errorf("got %d, want %d", fee.Amount, tt.want)
			}
			if fee.Symbol != tt.quant.Symbol {
				t.Errorf("fee symbol %s, want %s", fee.Symbol, tt.quant.Symbol)
			}
		})
	}
}

func TestCalcPrecision(t *testing.T) {
	if p, err := CalcPrecision(8); err != nil || p != 100_000_000 {
		t.Errorf("got %d, %v, want 100000000", p, err)
	}
	if _, err := CalcPrecision(19); !fault.IsValidation(err) {
		t.Errorf("err = %v, want validation fault", err)
	}
}

func TestParseAsset(t *testing.T) {
	a, err := ParseAsset("0.01000000 BTC")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a.Amount != 1_000_000 || a.Symbol != btc {
		t.Errorf("got %+v, want 1000000 of %s", a, btc)
	}
	if got := a.String(); got != "0.01000000 BTC" {
		t.Errorf("String() = %q", got)
	}

	if _, err := ParseAmount("1.00001", usd); !fault.IsValidation(err) {
		t.Errorf("too many digits: err = %v, want validation fault", err)
	}
	if _, err := ParseAsset("10 btc"); !fault.IsValidation(err) {
		t.Errorf("lowercase code: err = %v, want validation fault", err)
	}
}

func TestParseSymbol(t *testing.T) {
	got, err := ParseSymbol(btc.String())
	if err != nil || got != btc {
		t.Errorf("ParseSymbol(%q) = %v, %v", btc.String(), got, err)
	}
	for _, bad := range []string{"BTC", "x,BTC", "8,btc", "300,BTC"} {
		if _, err := ParseSymbol(bad); !fault.IsValidation(err) {
			t.Errorf("ParseSymbol(%q) err = %v, want validation fault", bad, err)
		}
	}
}

func TestAssetSymbolMismatchPanics(t *testing.T) {
	var err error
	func() {
		defer fault.Recover(&err)
		Asset{Amount: 1, Symbol: btc}.Add(Asset{Amount: 1, Symbol: usd})
	}()
	if !fault.IsInvariant(err) {
		t.Fatalf("err = %v, want invariant fault", err)
	}
}
