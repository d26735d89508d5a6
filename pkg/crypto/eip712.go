package crypto

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/uhyunpark/hyperdex/params"
)

// EIP712Domain separates signatures of one deployment from another.
type EIP712Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address // zero for off-chain signing
}

func DomainFromParams(d params.Domain) EIP712Domain {
	return EIP712Domain{
		Name:    d.Name,
		Version: d.Version,
		ChainID: big.NewInt(d.ChainID),
	}
}

var domainType = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// TypedMessage is a request that can be hashed as EIP-712 typed data.
type TypedMessage interface {
	primaryType() string
	fields() []apitypes.Type
	message() apitypes.TypedDataMessage
}

// NoFeeOverride marks an order that uses the configured fee ratios.
const NoFeeOverride int64 = -1

// OrderEIP712 is the typed form of a new order. Quantities are asset strings
// such as "0.01000000 BTC".
type OrderEIP712 struct {
	Owner         common.Address
	SymPairID     uint64
	OrderType     uint8 // 1 = limit, 2 = market
	OrderSide     uint8 // 1 = buy, 2 = sell
	LimitQuant    string
	Price         string
	ExternalID    uint64
	TakerFeeRatio int64 // NoFeeOverride unless admin co-signed
	MakerFeeRatio int64
	Nonce         uint64
}

func (o *OrderEIP712) primaryType() string { return "Order" }

func (o *OrderEIP712) fields() []apitypes.Type {
	return []apitypes.Type{
		{Name: "owner", Type: "address"},
		{Name: "sympairId", Type: "uint64"},
		{Name: "orderType", Type: "uint8"},
		{Name: "orderSide", Type: "uint8"},
		{Name: "limitQuant", Type: "string"},
		{Name: "price", Type: "string"},
		{Name: "externalId", Type: "uint64"},
		{Name: "takerFeeRatio", Type: "int64"},
		{Name: "makerFeeRatio", Type: "int64"},
		{Name: "nonce", Type: "uint64"},
	}
}

func (o *OrderEIP712) message() apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"owner":         o.Owner.Hex(),
		"sympairId":     u64(o.SymPairID),
		"orderType":     u64(uint64(o.OrderType)),
		"orderSide":     u64(uint64(o.OrderSide)),
		"limitQuant":    o.LimitQuant,
		"price":         o.Price,
		"externalId":    u64(o.ExternalID),
		"takerFeeRatio": strconv.FormatInt(o.TakerFeeRatio, 10),
		"makerFeeRatio": strconv.FormatInt(o.MakerFeeRatio, 10),
		"nonce":         u64(o.Nonce),
	}
}

type CancelEIP712 struct {
	Owner   common.Address
	OrderID uint64
	Nonce   uint64
}

func (c *CancelEIP712) primaryType() string { return "CancelOrder" }

func (c *CancelEIP712) fields() []apitypes.Type {
	return []apitypes.Type{
		{Name: "owner", Type: "address"},
		{Name: "orderId", Type: "uint64"},
		{Name: "nonce", Type: "uint64"},
	}
}

func (c *CancelEIP712) message() apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"owner":   c.Owner.Hex(),
		"orderId": u64(c.OrderID),
		"nonce":   u64(c.Nonce),
	}
}

type MatchEIP712 struct {
	Matcher    common.Address
	MaxCount   uint64
	SymPairIDs []uint64
	Memo       string
	Nonce      uint64
}

func (m *MatchEIP712) primaryType() string { return "Match" }

func (m *MatchEIP712) fields() []apitypes.Type {
	return []apitypes.Type{
		{Name: "matcher", Type: "address"},
		{Name: "maxCount", Type: "uint64"},
		{Name: "sympairIds", Type: "uint64[]"},
		{Name: "memo", Type: "string"},
		{Name: "nonce", Type: "uint64"},
	}
}

func (m *MatchEIP712) message() apitypes.TypedDataMessage {
	ids := make([]interface{}, len(m.SymPairIDs))
	for i, id := range m.SymPairIDs {
		ids[i] = u64(id)
	}
	return apitypes.TypedDataMessage{
		"matcher":    m.Matcher.Hex(),
		"maxCount":   u64(m.MaxCount),
		"sympairIds": ids,
		"memo":       m.Memo,
		"nonce":      u64(m.Nonce),
	}
}

// WithdrawEIP712 moves Quantity of the token (Contract, Symbol) out of the
// exchange. Symbol is "<precision>,<code>".
type WithdrawEIP712 struct {
	Owner    common.Address
	Contract string
	Symbol   string
	Quantity string
	Nonce    uint64
}

func (w *WithdrawEIP712) primaryType() string { return "Withdraw" }

func (w *WithdrawEIP712) fields() []apitypes.Type {
	return []apitypes.Type{
		{Name: "owner", Type: "address"},
		{Name: "contract", Type: "string"},
		{Name: "symbol", Type: "string"},
		{Name: "quantity", Type: "string"},
		{Name: "nonce", Type: "uint64"},
	}
}

func (w *WithdrawEIP712) message() apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"owner":    w.Owner.Hex(),
		"contract": w.Contract,
		"symbol":   w.Symbol,
		"quantity": w.Quantity,
		"nonce":    u64(w.Nonce),
	}
}

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

// EIP712Signer hashes, signs and recovers typed requests within one domain.
type EIP712Signer struct {
	domain EIP712Domain
}

func NewEIP712Signer(domain EIP712Domain) *EIP712Signer {
	return &EIP712Signer{domain: domain}
}

func (e *EIP712Signer) typedData(m TypedMessage) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain":  domainType,
			m.primaryType(): m.fields(),
		},
		PrimaryType: m.primaryType(),
		Domain: apitypes.TypedDataDomain{
			Name:              e.domain.Name,
			Version:           e.domain.Version,
			ChainId:           (*math.HexOrDecimal256)(e.domain.ChainID),
			VerifyingContract: e.domain.VerifyingContract.Hex(),
		},
		Message: m.message(),
	}
}

// Hash returns keccak256("\x19\x01" || domainSeparator || hashStruct(m)).
func (e *EIP712Signer) Hash(m TypedMessage) ([]byte, error) {
	td := e.typedData(m)
	domainSeparator, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}
	structHash, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", td.PrimaryType, err)
	}
	raw := make([]byte, 0, 2+len(domainSeparator)+len(structHash))
	raw = append(raw, 0x19, 0x01)
	raw = append(raw, domainSeparator...)
	raw = append(raw, structHash...)
	return crypto.Keccak256(raw), nil
}

func (e *EIP712Signer) Sign(signer *Signer, m TypedMessage) ([]byte, error) {
	digest, err := e.Hash(m)
	if err != nil {
		return nil, err
	}
	return signer.Sign(digest)
}

// Recover returns the account that signed m.
func (e *EIP712Signer) Recover(m TypedMessage, signature []byte) (common.Address, error) {
	digest, err := e.Hash(m)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverAddress(digest, signature)
}

// TypedDataJSON renders m in the eth_signTypedData_v4 layout wallets expect.
func (e *EIP712Signer) TypedDataJSON(m TypedMessage) (string, error) {
	b, err := json.Marshal(e.typedData(m))
	if err != nil {
		return "", fmt.Errorf("failed to marshal typed data: %w", err)
	}
	return string(b), nil
}
