package transaction

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperdex/pkg/app/core/decimal"
	"github.com/uhyunpark/hyperdex/pkg/app/core/fault"
	"github.com/uhyunpark/hyperdex/pkg/app/core/market"
	"github.com/uhyunpark/hyperdex/pkg/app/core/orderbook"
	"github.com/uhyunpark/hyperdex/pkg/app/dex"
	"github.com/uhyunpark/hyperdex/pkg/crypto"
)

// ErrBadSignature marks envelopes whose signatures do not check out.
var ErrBadSignature = errors.New("invalid signature")

// Withdrawal is a verified withdraw request.
type Withdrawal struct {
	Owner common.Address
	Token market.Token
	Quant decimal.Asset
}

type Verifier struct {
	eip712 *crypto.EIP712Signer
}

func NewVerifier(domain crypto.EIP712Domain) *Verifier {
	return &Verifier{eip712: crypto.NewEIP712Signer(domain)}
}

// Signers checks that Signature was made by the transaction's signer and
// returns everyone who signed: the signer plus the co-signer if present.
func (v *Verifier) Signers(tx *SignedTransaction) (dex.Auth, error) {
	m, err := tx.TypedMessage()
	if err != nil {
		return nil, fault.Validationf("%v", err)
	}
	sig, err := crypto.DecodeSignature(tx.Signature)
	if err != nil {
		return nil, errors.Mark(err, ErrBadSignature)
	}
	signer, err := v.eip712.Recover(m, sig)
	if err != nil {
		return nil, errors.Mark(err, ErrBadSignature)
	}
	if want := tx.Signer(); signer != want {
		return nil, errors.Wrapf(ErrBadSignature, "signed by %s, expected %s", signer.Hex(), want.Hex())
	}
	auth := dex.NewAuth(signer)

	if tx.AdminSignature == "" {
		return auth, nil
	}
	cosig, err := crypto.DecodeSignature(tx.AdminSignature)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "admin signature"), ErrBadSignature)
	}
	cosigner, err := v.eip712.Recover(m, cosig)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "admin signature"), ErrBadSignature)
	}
	auth[cosigner] = struct{}{}
	return auth, nil
}

// OrderRequest converts a verified order payload.
func OrderRequest(p *OrderPayload) (dex.OrderRequest, error) {
	m, err := p.eip712()
	if err != nil {
		return dex.OrderRequest{}, err
	}
	limit, err := decimal.ParseAsset(p.LimitQuant)
	if err != nil {
		return dex.OrderRequest{}, err
	}
	req := dex.OrderRequest{
		Owner:      m.Owner,
		SymPairID:  p.SymPairID,
		Type:       orderbook.OrderType(m.OrderType),
		Side:       orderbook.Side(m.OrderSide),
		LimitQuant: limit,
		ExternalID: p.ExternalID,
	}
	if p.Price != "" {
		if req.Price, err = decimal.ParseAsset(p.Price); err != nil {
			return dex.OrderRequest{}, err
		}
	}
	if p.TakerFeeRatio != nil {
		req.FeeOverride = &dex.FeeOverride{Taker: *p.TakerFeeRatio, Maker: *p.MakerFeeRatio}
	}
	return req, nil
}

func MatchRequest(p *MatchPayload) (dex.MatchRequest, error) {
	if p.MaxCount > math.MaxInt32 {
		return dex.MatchRequest{}, fault.Validationf("max count %d too large", p.MaxCount)
	}
	return dex.MatchRequest{
		Matcher:    common.HexToAddress(p.Matcher),
		MaxCount:   int(p.MaxCount),
		SymPairIDs: p.SymPairIDs,
		Memo:       p.Memo,
	}, nil
}

func WithdrawRequest(p *WithdrawPayload) (Withdrawal, error) {
	sym, err := decimal.ParseSymbol(p.Symbol)
	if err != nil {
		return Withdrawal{}, err
	}
	quant, err := decimal.ParseAsset(p.Quantity)
	if err != nil {
		return Withdrawal{}, err
	}
	if quant.Symbol != sym {
		return Withdrawal{}, fault.Validationf("quantity %s does not match symbol %s", p.Quantity, sym)
	}
	return Withdrawal{
		Owner: common.HexToAddress(p.Owner),
		Token: market.Token{Contract: p.Contract, Symbol: sym},
		Quant: quant,
	}, nil
}
