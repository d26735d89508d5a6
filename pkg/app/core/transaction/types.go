// Package transaction holds the signed request envelopes accepted by the
// API and turns verified envelopes into exchange requests.
package transaction

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperdex/pkg/app/core/orderbook"
	"github.com/uhyunpark/hyperdex/pkg/crypto"
)

type TxType string

const (
	TxTypeOrder    TxType = "order"
	TxTypeCancel   TxType = "cancel"
	TxTypeMatch    TxType = "match"
	TxTypeWithdraw TxType = "withdraw"
)

// SignedTransaction carries exactly one payload matching Type. The validate
// tags are checked by the API before signatures are looked at.
type SignedTransaction struct {
	Type      TxType           `json:"type" validate:"required,oneof=order cancel match withdraw"`
	Order     *OrderPayload    `json:"order,omitempty"`
	Cancel    *CancelPayload   `json:"cancel,omitempty"`
	Match     *MatchPayload    `json:"match,omitempty"`
	Withdraw  *WithdrawPayload `json:"withdraw,omitempty"`
	Signature string           `json:"signature" validate:"required"` // 0x-prefixed, 65 bytes

	// AdminSignature co-signs the same digest. Orders need it when fee
	// ratios are overridden or the dex requires admin signing.
	AdminSignature string `json:"admin_signature,omitempty"`
}

// OrderPayload is a new order. LimitQuant and Price are asset strings, e.g.
// "0.01000000 BTC" and "50000.0000 USD".
type OrderPayload struct {
	Owner         string `json:"owner" validate:"required,eth_addr"`
	SymPairID     uint64 `json:"sympair_id" validate:"required"`
	Type          string `json:"type" validate:"required,oneof=limit market"`
	Side          string `json:"side" validate:"required,oneof=buy sell"`
	LimitQuant    string `json:"limit_quant" validate:"required"`
	Price         string `json:"price"` // empty for market orders
	ExternalID    uint64 `json:"external_id"`
	TakerFeeRatio *int64 `json:"taker_fee_ratio,omitempty" validate:"omitempty,min=0,max=2500"`
	MakerFeeRatio *int64 `json:"maker_fee_ratio,omitempty" validate:"omitempty,min=0,max=2500"`
	Nonce         uint64 `json:"nonce" validate:"required"`
}

type CancelPayload struct {
	Owner   string `json:"owner" validate:"required,eth_addr"`
	OrderID uint64 `json:"order_id" validate:"required"`
	Nonce   uint64 `json:"nonce" validate:"required"`
}

type MatchPayload struct {
	Matcher    string   `json:"matcher" validate:"required,eth_addr"`
	MaxCount   uint64   `json:"max_count" validate:"required,max=10000"`
	SymPairIDs []uint64 `json:"sympair_ids,omitempty" validate:"max=64,dive,required"`
	Memo       string   `json:"memo" validate:"max=256"`
	Nonce      uint64   `json:"nonce" validate:"required"`
}

type WithdrawPayload struct {
	Owner    string `json:"owner" validate:"required,eth_addr"`
	Contract string `json:"contract" validate:"required,max=64"`
	Symbol   string `json:"symbol" validate:"required"`   // "4,USD"
	Quantity string `json:"quantity" validate:"required"` // "10.0000 USD"
	Nonce    uint64 `json:"nonce" validate:"required"`
}

// Signer is the account whose nonce the transaction consumes.
func (tx *SignedTransaction) Signer() common.Address {
	switch tx.Type {
	case TxTypeOrder:
		return common.HexToAddress(tx.Order.Owner)
	case TxTypeCancel:
		return common.HexToAddress(tx.Cancel.Owner)
	case TxTypeMatch:
		return common.HexToAddress(tx.Match.Matcher)
	case TxTypeWithdraw:
		return common.HexToAddress(tx.Withdraw.Owner)
	}
	return common.Address{}
}

func (tx *SignedTransaction) Nonce() uint64 {
	switch tx.Type {
	case TxTypeOrder:
		return tx.Order.Nonce
	case TxTypeCancel:
		return tx.Cancel.Nonce
	case TxTypeMatch:
		return tx.Match.Nonce
	case TxTypeWithdraw:
		return tx.Withdraw.Nonce
	}
	return 0
}

// TypedMessage returns the EIP-712 form of the payload that Signature covers.
func (tx *SignedTransaction) TypedMessage() (crypto.TypedMessage, error) {
	switch tx.Type {
	case TxTypeOrder:
		return tx.Order.eip712()
	case TxTypeCancel:
		c := tx.Cancel
		return &crypto.CancelEIP712{Owner: common.HexToAddress(c.Owner), OrderID: c.OrderID, Nonce: c.Nonce}, nil
	case TxTypeMatch:
		m := tx.Match
		return &crypto.MatchEIP712{
			Matcher:    common.HexToAddress(m.Matcher),
			MaxCount:   m.MaxCount,
			SymPairIDs: m.SymPairIDs,
			Memo:       m.Memo,
			Nonce:      m.Nonce,
		}, nil
	case TxTypeWithdraw:
		w := tx.Withdraw
		return &crypto.WithdrawEIP712{
			Owner:    common.HexToAddress(w.Owner),
			Contract: w.Contract,
			Symbol:   w.Symbol,
			Quantity: w.Quantity,
			Nonce:    w.Nonce,
		}, nil
	}
	return nil, fmt.Errorf("unknown transaction type: %s", tx.Type)
}

func (o *OrderPayload) eip712() (*crypto.OrderEIP712, error) {
	typ, err := orderbook.ParseOrderType(o.Type)
	if err != nil {
		return nil, err
	}
	side, err := orderbook.ParseSide(o.Side)
	if err != nil {
		return nil, err
	}
	taker, maker := crypto.NoFeeOverride, crypto.NoFeeOverride
	if o.TakerFeeRatio != nil {
		taker, maker = *o.TakerFeeRatio, *o.MakerFeeRatio
	}
	return &crypto.OrderEIP712{
		Owner:         common.HexToAddress(o.Owner),
		SymPairID:     o.SymPairID,
		OrderType:     uint8(typ),
		OrderSide:     uint8(side),
		LimitQuant:    o.LimitQuant,
		Price:         o.Price,
		ExternalID:    o.ExternalID,
		TakerFeeRatio: taker,
		MakerFeeRatio: maker,
		Nonce:         o.Nonce,
	}, nil
}

// Validate checks the envelope shape. It does not look at signatures.
func (tx *SignedTransaction) Validate() error {
	if tx.Signature == "" {
		return fmt.Errorf("missing signature")
	}

	payloads := 0
	for _, set := range []bool{tx.Order != nil, tx.Cancel != nil, tx.Match != nil, tx.Withdraw != nil} {
		if set {
			payloads++
		}
	}
	if payloads != 1 {
		return fmt.Errorf("transaction must carry exactly one payload, got %d", payloads)
	}

	var owner string
	switch tx.Type {
	case TxTypeOrder:
		if tx.Order == nil {
			return fmt.Errorf("order type requires order payload")
		}
		if (tx.Order.TakerFeeRatio == nil) != (tx.Order.MakerFeeRatio == nil) {
			return fmt.Errorf("taker and maker fee ratios must be overridden together")
		}
		owner = tx.Order.Owner
	case TxTypeCancel:
		if tx.Cancel == nil {
			return fmt.Errorf("cancel type requires cancel payload")
		}
		owner = tx.Cancel.Owner
	case TxTypeMatch:
		if tx.Match == nil {
			return fmt.Errorf("match type requires match payload")
		}
		owner = tx.Match.Matcher
	case TxTypeWithdraw:
		if tx.Withdraw == nil {
			return fmt.Errorf("withdraw type requires withdraw payload")
		}
		owner = tx.Withdraw.Owner
	default:
		return fmt.Errorf("unknown transaction type: %q", tx.Type)
	}
	if !common.IsHexAddress(owner) {
		return fmt.Errorf("invalid signer address %q", owner)
	}
	return nil
}

// ParseTransaction decodes and validates a JSON envelope.
func ParseTransaction(data []byte) (*SignedTransaction, error) {
	var tx SignedTransaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}
	if err := tx.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}
	return &tx, nil
}

// Sign fills Signature with signer's signature over the payload.
func Sign(e *crypto.EIP712Signer, signer *crypto.Signer, tx *SignedTransaction) error {
	sig, err := sign(e, signer, tx)
	if err != nil {
		return err
	}
	tx.Signature = crypto.EncodeSignature(sig)
	return nil
}

// CoSign fills AdminSignature.
func CoSign(e *crypto.EIP712Signer, admin *crypto.Signer, tx *SignedTransaction) error {
	sig, err := sign(e, admin, tx)
	if err != nil {
		return err
	}
	tx.AdminSignature = crypto.EncodeSignature(sig)
	return nil
}

func sign(e *crypto.EIP712Signer, signer *crypto.Signer, tx *SignedTransaction) ([]byte, error) {
	m, err := tx.TypedMessage()
	if err != nil {
		return nil, err
	}
	return e.Sign(signer, m)
}
