package api

import (
	"github.com/uhyunpark/hyperdex/pkg/app/core/market"
	"github.com/uhyunpark/hyperdex/pkg/app/core/orderbook"
	"github.com/uhyunpark/hyperdex/pkg/app/dex"
	"github.com/uhyunpark/hyperdex/pkg/storage"
)

// API response types. Quantities are rendered as asset strings
// ("0.01000000 BTC"), times as Unix milliseconds.

type TokenInfo struct {
	Contract  string `json:"contract"`
	Code      string `json:"code"`
	Precision uint8  `json:"precision"`
}

type SymPairInfo struct {
	ID                uint64    `json:"id"`
	Name              string    `json:"name"` // "BTC/USD"
	Asset             TokenInfo `json:"asset"`
	Coin              TokenInfo `json:"coin"`
	MinAssetQuant     string    `json:"minAssetQuant"`
	MinCoinQuant      string    `json:"minCoinQuant"`
	OnlyAcceptCoinFee bool      `json:"onlyAcceptCoinFee"`
	Enabled           bool      `json:"enabled"`
}

type PriceLevel struct {
	Price  string `json:"price"`
	Quant  string `json:"quant"`
	Orders int    `json:"orders"`
}

type OrderbookSnapshot struct {
	SymPairID uint64       `json:"sympairId"`
	Bids      []PriceLevel `json:"bids"` // high to low
	Asks      []PriceLevel `json:"asks"` // low to high
	Timestamp int64        `json:"timestamp"`
}

type OrderInfo struct {
	ID            uint64 `json:"id"`
	ExternalID    uint64 `json:"externalId"`
	Owner         string `json:"owner"`
	SymPairID     uint64 `json:"sympairId"`
	Type          string `json:"type"`
	Side          string `json:"side"`
	Price         string `json:"price"`
	LimitQuant    string `json:"limitQuant"`
	FrozenQuant   string `json:"frozenQuant"`
	MatchedAssets string `json:"matchedAssets"`
	MatchedCoins  string `json:"matchedCoins"`
	MatchedFee    string `json:"matchedFee"`
	TakerFeeRatio int64  `json:"takerFeeRatio"`
	MakerFeeRatio int64  `json:"makerFeeRatio"`
	Status        string `json:"status"`
	CreatedAt     int64  `json:"createdAt"`
	UpdatedAt     int64  `json:"updatedAt"`
	LastDealID    uint64 `json:"lastDealId"`
}

type DealInfo struct {
	ID          uint64 `json:"id"`
	SymPairID   uint64 `json:"sympairId"`
	BuyOrderID  uint64 `json:"buyOrderId"`
	SellOrderID uint64 `json:"sellOrderId"`
	Assets      string `json:"assets"`
	Coins       string `json:"coins"`
	Price       string `json:"price"`
	TakerSide   string `json:"takerSide"`
	BuyFee      string `json:"buyFee"`
	SellFee     string `json:"sellFee"`
	BuyRefund   string `json:"buyRefund"`
	Matcher     string `json:"matcher"`
	Memo        string `json:"memo"`
	Timestamp   int64  `json:"timestamp"`
}

type BalanceInfo struct {
	Contract string `json:"contract"`
	Quantity string `json:"quantity"`
}

type NonceInfo struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"` // last consumed; the next request uses nonce+1
}

// SubmitResponse answers every accepted POST.
type SubmitResponse struct {
	Status string     `json:"status"`
	Order  *OrderInfo `json:"order,omitempty"`
	Deals  []DealInfo `json:"deals,omitempty"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// WSSubscribeRequest is sent by clients, e.g.
// {"op":"subscribe","channels":["deals:1"]}.
type WSSubscribeRequest struct {
	Op       string   `json:"op" validate:"required,oneof=subscribe unsubscribe"`
	Channels []string `json:"channels" validate:"required,min=1,dive,required,max=64"`
}

// DealUpdate is pushed on deals:<pairID> for every committed deal.
type DealUpdate struct {
	Type    string   `json:"type"` // "deal"
	Channel string   `json:"channel"`
	Deal    DealInfo `json:"deal"`
}

// BookUpdate is pushed on orderbook:<pairID> after a commit that traded on
// the pair.
type BookUpdate struct {
	Type    string            `json:"type"` // "orderbook"
	Channel string            `json:"channel"`
	Book    OrderbookSnapshot `json:"book"`
}

// pageQuery bounds list endpoints.
type pageQuery struct {
	Limit int `validate:"min=1,max=500"`
}

type depthQuery struct {
	Levels int `validate:"min=1,max=200"`
}

func tokenInfo(t market.Token) TokenInfo {
	return TokenInfo{Contract: t.Contract, Code: t.Symbol.Code, Precision: t.Symbol.Precision}
}

func symPairInfo(p *market.SymbolPair) SymPairInfo {
	return SymPairInfo{
		ID:                p.ID,
		Name:              p.Name(),
		Asset:             tokenInfo(p.Asset),
		Coin:              tokenInfo(p.Coin),
		MinAssetQuant:     p.MinAssetQuant.String(),
		MinCoinQuant:      p.MinCoinQuant.String(),
		OnlyAcceptCoinFee: p.OnlyAcceptCoinFee,
		Enabled:           p.Enabled,
	}
}

func orderInfo(o *orderbook.Order) *OrderInfo {
	return &OrderInfo{
		ID:            o.ID,
		ExternalID:    o.ExternalID,
		Owner:         o.Owner.Hex(),
		SymPairID:     o.SymPairID,
		Type:          o.Type.String(),
		Side:          o.Side.String(),
		Price:         o.Price.String(),
		LimitQuant:    o.LimitQuant.String(),
		FrozenQuant:   o.FrozenQuant.String(),
		MatchedAssets: o.MatchedAssets.String(),
		MatchedCoins:  o.MatchedCoins.String(),
		MatchedFee:    o.MatchedFee.String(),
		TakerFeeRatio: o.TakerFeeRatio,
		MakerFeeRatio: o.MakerFeeRatio,
		Status:        o.Status.String(),
		CreatedAt:     o.CreatedAt.UnixMilli(),
		UpdatedAt:     o.UpdatedAt.UnixMilli(),
		LastDealID:    o.LastDealID,
	}
}

func dealInfo(d *orderbook.Deal) DealInfo {
	return DealInfo{
		ID:          d.ID,
		SymPairID:   d.SymPairID,
		BuyOrderID:  d.BuyOrderID,
		SellOrderID: d.SellOrderID,
		Assets:      d.DealAssets.String(),
		Coins:       d.DealCoins.String(),
		Price:       d.DealPrice.String(),
		TakerSide:   d.TakerSide.String(),
		BuyFee:      d.BuyFee.String(),
		SellFee:     d.SellFee.String(),
		BuyRefund:   d.BuyRefundCoins.String(),
		Matcher:     d.Matcher.Hex(),
		Memo:        d.Memo,
		Timestamp:   d.DealTime.UnixMilli(),
	}
}

func dealInfos(deals []*orderbook.Deal) []DealInfo {
	out := make([]DealInfo, len(deals))
	for i, d := range deals {
		out[i] = dealInfo(d)
	}
	return out
}

func priceLevels(levels []dex.DepthLevel) []PriceLevel {
	out := make([]PriceLevel, len(levels))
	for i, l := range levels {
		out[i] = PriceLevel{Price: l.Price.String(), Quant: l.Quant.String(), Orders: l.Orders}
	}
	return out
}

func balanceInfos(bals []storage.Balance) []BalanceInfo {
	out := make([]BalanceInfo, len(bals))
	for i, b := range bals {
		out[i] = BalanceInfo{Contract: b.Token.Contract, Quantity: b.Quant.String()}
	}
	return out
}
