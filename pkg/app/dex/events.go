package dex

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/hyperdex/pkg/app/core/orderbook"
)

const (
	sinkTimeout = 5 * time.Second
	sinkQueue   = 1024
)

// DealSink receives the deals of every committed call, in execution order.
type DealSink interface {
	PublishDeals(ctx context.Context, deals []*orderbook.Deal) error
}

// dispatcher hands committed deals to the sinks on its own goroutine, one
// batch at a time in commit order. Sending only blocks when the queue is
// full.
type dispatcher struct {
	log *zap.SugaredLogger

	sinksMu sync.RWMutex
	sinks   []DealSink

	sendMu sync.Mutex
	closed bool
	queue  chan dispatch
	done   chan struct{}
}

type dispatch struct {
	deals   []*orderbook.Deal
	flushed chan struct{}
}

func newDispatcher() *dispatcher {
	return &dispatcher{
		log:   zap.NewNop().Sugar(),
		queue: make(chan dispatch, sinkQueue),
		done:  make(chan struct{}),
	}
}

func (d *dispatcher) add(sink DealSink) {
	d.sinksMu.Lock()
	defer d.sinksMu.Unlock()
	d.sinks = append(d.sinks, sink)
}

func (d *dispatcher) send(m dispatch) bool {
	d.sendMu.Lock()
	defer d.sendMu.Unlock()
	if d.closed {
		return false
	}
	d.queue <- m
	return true
}

func (d *dispatcher) publish(deals []*orderbook.Deal) {
	if !d.send(dispatch{deals: deals}) {
		d.log.Warnw("deal_publish_dropped", "deals", len(deals), "reason", "closed")
	}
}

// flush returns once every batch queued before it has been delivered.
func (d *dispatcher) flush() {
	ch := make(chan struct{})
	if d.send(dispatch{flushed: ch}) {
		<-ch
	}
}

// close delivers what is queued and stops the goroutine.
func (d *dispatcher) close() {
	d.sendMu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.sendMu.Unlock()
	<-d.done
}

func (d *dispatcher) run() {
	defer close(d.done)
	for m := range d.queue {
		if m.flushed != nil {
			close(m.flushed)
			continue
		}
		d.deliver(m.deals)
	}
}

func (d *dispatcher) deliver(deals []*orderbook.Deal) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()

	d.sinksMu.RLock()
	sinks := d.sinks
	d.sinksMu.RUnlock()
	for _, sink := range sinks {
		if err := sink.PublishDeals(ctx, deals); err != nil {
			d.log.Warnw("deal_publish_failed", "deals", len(deals), "error", err)
		}
	}
}
