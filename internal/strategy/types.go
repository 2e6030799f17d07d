package strategy

import (
	"fmt"
	"strings"
)

// TopLevelCount is the number of price levels reported per side.
const TopLevelCount = 5

type Side int

const (
	Sell Side = iota
	Buy
)

func (s Side) String() string {
	switch s {
	case Sell:
		return "SELL"
	case Buy:
		return "BUY"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

func (s Side) Opposite() Side {
	if s == Sell {
		return Buy
	}
	return Sell
}

type Instrument int

const (
	InstrumentFuture Instrument = iota
	InstrumentETF
)

func (i Instrument) String() string {
	switch i {
	case InstrumentFuture:
		return "future"
	case InstrumentETF:
		return "etf"
	default:
		return fmt.Sprintf("Instrument(%d)", int(i))
	}
}

func (i Instrument) valid() bool {
	return i == InstrumentFuture || i == InstrumentETF
}

func ParseInstrument(name string) (Instrument, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "future":
		return InstrumentFuture, nil
	case "etf":
		return InstrumentETF, nil
	default:
		return 0, fmt.Errorf("unknown instrument %q", name)
	}
}

type Lifespan int

const (
	FillAndKill Lifespan = iota
	GoodForDay
)

// Order is one resting quote. Filled never decreases over the order's life.
type Order struct {
	Price      int64
	Remaining  int64
	Filled     int64
	Cancelling bool
}

// Snapshot is a point-in-time copy of the trader's accounting.
type Snapshot struct {
	NetPosition       int64
	HedgePosition     int64
	PendingSell       int64
	PendingBuy        int64
	AskOrders         int
	BidOrders         int
	AsksCancelling    int
	BidsCancelling    int
	OutstandingHedges int
	LastSequence      uint64
	NextOrderID       uint64
	StaleBooks        uint64
	UnknownStatuses   uint64
}
