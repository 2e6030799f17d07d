package gateway

import (
	"errors"
	"fmt"

	"etf-mm-bot/internal/strategy"
)

var (
	ErrUnknownEvent  = errors.New("unknown event type")
	ErrNegativeField = errors.New("negative price or volume")
)

const (
	EventOrderBook    = "order_book"
	EventTradeTicks   = "trade_ticks"
	EventOrderStatus  = "order_status"
	EventOrderFilled  = "order_filled"
	EventError        = "error"
	EventHedgeFilled  = "hedge_filled"
	EventDisconnected = "disconnected"

	CommandInsertOrder = "insert_order"
	CommandCancelOrder = "cancel_order"
	CommandHedgeOrder  = "hedge_order"
)

// EventWire is the inbound frame layout shared by the JSON and msgpack codecs.
type EventWire struct {
	Type            string  `json:"type" msgpack:"type"`
	Instrument      int     `json:"instrument,omitempty" msgpack:"instrument,omitempty"`
	Sequence        uint64  `json:"sequence,omitempty" msgpack:"sequence,omitempty"`
	AskPrices       []int64 `json:"ask_prices,omitempty" msgpack:"ask_prices,omitempty"`
	AskVolumes      []int64 `json:"ask_volumes,omitempty" msgpack:"ask_volumes,omitempty"`
	BidPrices       []int64 `json:"bid_prices,omitempty" msgpack:"bid_prices,omitempty"`
	BidVolumes      []int64 `json:"bid_volumes,omitempty" msgpack:"bid_volumes,omitempty"`
	OrderID         uint64  `json:"order_id,omitempty" msgpack:"order_id,omitempty"`
	FillVolume      int64   `json:"fill_volume,omitempty" msgpack:"fill_volume,omitempty"`
	RemainingVolume int64   `json:"remaining_volume,omitempty" msgpack:"remaining_volume,omitempty"`
	Fees            int64   `json:"fees,omitempty" msgpack:"fees,omitempty"`
	Price           int64   `json:"price,omitempty" msgpack:"price,omitempty"`
	Volume          int64   `json:"volume,omitempty" msgpack:"volume,omitempty"`
	Message         string  `json:"message,omitempty" msgpack:"message,omitempty"`
}

// CommandWire is the outbound frame layout.
type CommandWire struct {
	Type     string `json:"type"`
	OrderID  uint64 `json:"order_id"`
	Side     string `json:"side,omitempty"`
	Price    int64  `json:"price,omitempty"`
	Volume   int64  `json:"volume,omitempty"`
	Lifespan string `json:"lifespan,omitempty"`
}

func (w EventWire) Event() (strategy.Event, error) {
	switch w.Type {
	case EventOrderBook, EventTradeTicks:
		levels, err := w.levels()
		if err != nil {
			return nil, err
		}
		inst := strategy.Instrument(w.Instrument)
		if w.Type == EventOrderBook {
			return strategy.OrderBookUpdate{Instrument: inst, Sequence: w.Sequence, Levels: levels}, nil
		}
		return strategy.TradeTicks{Instrument: inst, Sequence: w.Sequence, Levels: levels}, nil
	case EventOrderStatus:
		if err := nonNegative("fill_volume", w.FillVolume, "remaining_volume", w.RemainingVolume); err != nil {
			return nil, err
		}
		return strategy.OrderStatus{
			OrderID:         w.OrderID,
			FillVolume:      w.FillVolume,
			RemainingVolume: w.RemainingVolume,
			Fees:            w.Fees,
		}, nil
	case EventOrderFilled:
		if err := nonNegative("price", w.Price, "volume", w.Volume); err != nil {
			return nil, err
		}
		return strategy.OrderFilled{OrderID: w.OrderID, Price: w.Price, Volume: w.Volume}, nil
	case EventError:
		return strategy.ErrorMessage{OrderID: w.OrderID, Message: w.Message}, nil
	case EventHedgeFilled:
		if err := nonNegative("price", w.Price, "volume", w.Volume); err != nil {
			return nil, err
		}
		return strategy.HedgeFilled{OrderID: w.OrderID, Price: w.Price, Volume: w.Volume}, nil
	case EventDisconnected:
		return strategy.Disconnected{Reason: w.Message}, nil
	default:
		return nil, fmt.Errorf("%q: %w", w.Type, ErrUnknownEvent)
	}
}

func (w EventWire) levels() (strategy.Levels, error) {
	var levels strategy.Levels
	for _, side := range []struct {
		name string
		src  []int64
		dst  *[strategy.TopLevelCount]int64
	}{
		{"ask_prices", w.AskPrices, &levels.AskPrices},
		{"ask_volumes", w.AskVolumes, &levels.AskVolumes},
		{"bid_prices", w.BidPrices, &levels.BidPrices},
		{"bid_volumes", w.BidVolumes, &levels.BidVolumes},
	} {
		if len(side.src) > strategy.TopLevelCount {
			return levels, fmt.Errorf("%s has %d levels, max %d", side.name, len(side.src), strategy.TopLevelCount)
		}
		for i, v := range side.src {
			if v < 0 {
				return levels, fmt.Errorf("%s[%d] = %d: %w", side.name, i, v, ErrNegativeField)
			}
		}
		copy(side.dst[:], side.src)
	}
	return levels, nil
}

func nonNegative(name string, v int64, otherName string, other int64) error {
	if v < 0 {
		return fmt.Errorf("%s = %d: %w", name, v, ErrNegativeField)
	}
	if other < 0 {
		return fmt.Errorf("%s = %d: %w", otherName, other, ErrNegativeField)
	}
	return nil
}

// EventToWire is the inverse of EventWire.Event, used by replay tooling and
// test exchanges.
func EventToWire(ev strategy.Event) (EventWire, error) {
	switch e := ev.(type) {
	case strategy.OrderBookUpdate:
		w := levelsToWire(e.Levels)
		w.Type, w.Instrument, w.Sequence = EventOrderBook, int(e.Instrument), e.Sequence
		return w, nil
	case strategy.TradeTicks:
		w := levelsToWire(e.Levels)
		w.Type, w.Instrument, w.Sequence = EventTradeTicks, int(e.Instrument), e.Sequence
		return w, nil
	case strategy.OrderStatus:
		return EventWire{Type: EventOrderStatus, OrderID: e.OrderID, FillVolume: e.FillVolume, RemainingVolume: e.RemainingVolume, Fees: e.Fees}, nil
	case strategy.OrderFilled:
		return EventWire{Type: EventOrderFilled, OrderID: e.OrderID, Price: e.Price, Volume: e.Volume}, nil
	case strategy.ErrorMessage:
		return EventWire{Type: EventError, OrderID: e.OrderID, Message: e.Message}, nil
	case strategy.HedgeFilled:
		return EventWire{Type: EventHedgeFilled, OrderID: e.OrderID, Price: e.Price, Volume: e.Volume}, nil
	case strategy.Disconnected:
		return EventWire{Type: EventDisconnected, Message: e.Reason}, nil
	default:
		return EventWire{}, fmt.Errorf("%T: %w", ev, ErrUnknownEvent)
	}
}

func levelsToWire(levels strategy.Levels) EventWire {
	return EventWire{
		AskPrices:  append([]int64(nil), levels.AskPrices[:]...),
		AskVolumes: append([]int64(nil), levels.AskVolumes[:]...),
		BidPrices:  append([]int64(nil), levels.BidPrices[:]...),
		BidVolumes: append([]int64(nil), levels.BidVolumes[:]...),
	}
}

func CommandToWire(cmd strategy.Command) (CommandWire, error) {
	switch cmd.Kind {
	case strategy.CommandInsert:
		return CommandWire{
			Type:     CommandInsertOrder,
			OrderID:  cmd.OrderID,
			Side:     cmd.Side.String(),
			Price:    cmd.Price,
			Volume:   cmd.Volume,
			Lifespan: lifespanName(cmd.Lifespan),
		}, nil
	case strategy.CommandCancel:
		return CommandWire{Type: CommandCancelOrder, OrderID: cmd.OrderID}, nil
	case strategy.CommandHedge:
		return CommandWire{
			Type:    CommandHedgeOrder,
			OrderID: cmd.OrderID,
			Side:    cmd.Side.String(),
			Price:   cmd.Price,
			Volume:  cmd.Volume,
		}, nil
	default:
		return CommandWire{}, fmt.Errorf("unknown command kind %q", cmd.Kind)
	}
}

func lifespanName(l strategy.Lifespan) string {
	if l == strategy.FillAndKill {
		return "FILL_AND_KILL"
	}
	return "GOOD_FOR_DAY"
}
