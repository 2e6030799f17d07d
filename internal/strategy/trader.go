package strategy

import (
	"errors"

	"etf-mm-bot/internal/config"

	"go.uber.org/zap"
)

// Trader is the quoting state machine for one ETF hedged with futures.
// Events must be handled one at a time; Trader holds no locks.
type Trader struct {
	cfg           config.StrategyConfig
	reference     Instrument
	log           *zap.Logger
	book          *QuoteBook
	position      Position
	guard         SequenceGuard
	hedges        map[uint64]*hedgeOrder
	hedgePosition int64
	nextID        uint64

	minHedgePrice int64
	maxHedgePrice int64

	staleBooks      uint64
	unknownStatuses uint64
}

func NewTrader(cfg config.StrategyConfig, log *zap.Logger) (*Trader, error) {
	if cfg.LotSize <= 0 || cfg.TickSize <= 0 || cfg.MaxOrderDepth <= 0 {
		return nil, errors.New("lot size, tick size and order depth must be > 0")
	}
	reference, err := ParseInstrument(cfg.ReferenceInstrument)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Trader{
		cfg:           cfg,
		reference:     reference,
		log:           log,
		book:          NewQuoteBook(),
		hedges:        make(map[uint64]*hedgeOrder),
		nextID:        1,
		minHedgePrice: (cfg.MinPrice + cfg.TickSize) / cfg.TickSize * cfg.TickSize,
		maxHedgePrice: cfg.MaxPrice / cfg.TickSize * cfg.TickSize,
	}, nil
}

// Handle processes one event to completion and returns the commands to send,
// in order.
func (t *Trader) Handle(ev Event) []Command {
	switch e := ev.(type) {
	case OrderBookUpdate:
		return t.onOrderBook(e)
	case OrderStatus:
		t.log.Info("order status",
			zap.Uint64("order_id", e.OrderID),
			zap.Int64("fill_volume", e.FillVolume),
			zap.Int64("remaining_volume", e.RemainingVolume),
			zap.Int64("fees", e.Fees),
		)
		return t.applyStatus(e)
	case ErrorMessage:
		return t.onError(e)
	case HedgeFilled:
		t.applyHedgeFill(e)
	case TradeTicks:
		t.log.Debug("trade ticks",
			zap.Stringer("instrument", e.Instrument),
			zap.Uint64("sequence", e.Sequence),
			zap.Int64("ask_price", e.AskPrices[0]),
			zap.Int64("ask_volume", e.AskVolumes[0]),
			zap.Int64("bid_price", e.BidPrices[0]),
			zap.Int64("bid_volume", e.BidVolumes[0]),
		)
	case OrderFilled:
		t.log.Info("order filled",
			zap.Uint64("order_id", e.OrderID),
			zap.Int64("price", e.Price),
			zap.Int64("volume", e.Volume),
		)
	case Disconnected:
		t.log.Warn("execution connection lost", zap.String("reason", e.Reason))
	default:
		t.log.Warn("unhandled event", zap.Any("event", ev))
	}
	return nil
}

func (t *Trader) onOrderBook(update OrderBookUpdate) []Command {
	if !update.Instrument.valid() {
		t.log.Warn("order book for unknown instrument", zap.Stringer("instrument", update.Instrument))
		return nil
	}
	// One sequence space covers both instruments' books.
	if !t.guard.Accept(update.Sequence) {
		t.staleBooks++
		t.log.Info("discarding stale order book",
			zap.Stringer("instrument", update.Instrument),
			zap.Uint64("sequence", update.Sequence),
			zap.Uint64("last_sequence", t.guard.Last()),
		)
		return nil
	}
	t.log.Debug("order book",
		zap.Stringer("instrument", update.Instrument),
		zap.Uint64("sequence", update.Sequence),
		zap.Int64("ask_price", update.AskPrices[0]),
		zap.Int64("ask_volume", update.AskVolumes[0]),
		zap.Int64("bid_price", update.BidPrices[0]),
		zap.Int64("bid_volume", update.BidVolumes[0]),
	)
	if update.Instrument != t.reference {
		return nil
	}
	return t.reprice(update)
}

// onError treats an error on a tracked order as a terminal status with no
// fill, so the order's slot and pending volume are released.
func (t *Trader) onError(e ErrorMessage) []Command {
	t.log.Warn("gateway error", zap.Uint64("order_id", e.OrderID), zap.String("message", e.Message))
	if e.OrderID == 0 {
		return nil
	}
	if _, _, ok := t.book.Lookup(e.OrderID); !ok {
		return nil
	}
	return t.applyStatus(OrderStatus{OrderID: e.OrderID})
}

func (t *Trader) nextOrderID() uint64 {
	id := t.nextID
	t.nextID++
	return id
}

// Tracks reports whether id is a resting quote.
func (t *Trader) Tracks(id uint64) bool {
	_, _, ok := t.book.Lookup(id)
	return ok
}

func (t *Trader) Snapshot() Snapshot {
	return Snapshot{
		NetPosition:       t.position.Net,
		HedgePosition:     t.hedgePosition,
		PendingSell:       t.position.PendingSell,
		PendingBuy:        t.position.PendingBuy,
		AskOrders:         t.book.Count(Sell),
		BidOrders:         t.book.Count(Buy),
		AsksCancelling:    t.book.Cancelling(Sell),
		BidsCancelling:    t.book.Cancelling(Buy),
		OutstandingHedges: len(t.hedges),
		LastSequence:      t.guard.Last(),
		NextOrderID:       t.nextID,
		StaleBooks:        t.staleBooks,
		UnknownStatuses:   t.unknownStatuses,
	}
}
