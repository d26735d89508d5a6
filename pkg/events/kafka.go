// Package events publishes committed deals to Kafka.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/kafka-go"

	"github.com/uhyunpark/hyperdex/pkg/app/core/orderbook"
	"github.com/uhyunpark/hyperdex/pkg/app/dex"
)

// MessageWriter is the part of kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DealMessage is the value of each Kafka message.
type DealMessage struct {
	ID          uint64 `json:"id"`
	SymPairID   uint64 `json:"sympair_id"`
	BuyOrderID  uint64 `json:"buy_order_id"`
	SellOrderID uint64 `json:"sell_order_id"`
	Assets      string `json:"assets"`
	Coins       string `json:"coins"`
	Price       string `json:"price"`
	TakerSide   string `json:"taker_side"`
	BuyFee      string `json:"buy_fee"`
	SellFee     string `json:"sell_fee"`
	BuyRefund   string `json:"buy_refund"`
	Matcher     string `json:"matcher"`
	Memo        string `json:"memo"`
	DealTime    int64  `json:"deal_time"` // unix ms
}

// KafkaPublisher writes deals keyed by pair id, so each pair's deals stay
// ordered within one partition.
type KafkaPublisher struct {
	writer MessageWriter
}

var _ dex.DealSink = (*KafkaPublisher)(nil)

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return NewPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
	})
}

func NewPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) PublishDeals(ctx context.Context, deals []*orderbook.Deal) error {
	msgs := make([]kafka.Message, 0, len(deals))
	for _, d := range deals {
		value, err := json.Marshal(newDealMessage(d))
		if err != nil {
			return errors.Wrapf(err, "encode deal %d", d.ID)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(strconv.FormatUint(d.SymPairID, 10)),
			Value: value,
			Time:  d.DealTime,
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return errors.Wrapf(err, "publish %d deals", len(msgs))
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func newDealMessage(d *orderbook.Deal) DealMessage {
	return DealMessage{
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
		DealTime:    d.DealTime.UnixMilli(),
	}
}
