package strategy

// Event is one inbound message from the exchange gateway.
type Event interface {
	event()
}

// Levels holds the top price levels of both sides. Empty levels are zero.
type Levels struct {
	AskPrices  [TopLevelCount]int64
	AskVolumes [TopLevelCount]int64
	BidPrices  [TopLevelCount]int64
	BidVolumes [TopLevelCount]int64
}

type OrderBookUpdate struct {
	Instrument Instrument
	Sequence   uint64
	Levels
}

type TradeTicks struct {
	Instrument Instrument
	Sequence   uint64
	Levels
}

// OrderStatus reports cumulative fill and remaining volume for one of our
// orders. Remaining is zero once the order is filled or cancelled.
type OrderStatus struct {
	OrderID         uint64
	FillVolume      int64
	RemainingVolume int64
	Fees            int64
}

type OrderFilled struct {
	OrderID uint64
	Price   int64
	Volume  int64
}

// ErrorMessage carries a gateway error. OrderID is zero when the error does
// not pertain to a particular order.
type ErrorMessage struct {
	OrderID uint64
	Message string
}

// HedgeFilled reports a (partial) hedge execution. Price and Volume are both
// zero when the hedge was unsuccessful.
type HedgeFilled struct {
	OrderID uint64
	Price   int64
	Volume  int64
}

type Disconnected struct {
	Reason string
}

func (OrderBookUpdate) event() {}
func (TradeTicks) event()      {}
func (OrderStatus) event()     {}
func (OrderFilled) event()     {}
func (ErrorMessage) event()    {}
func (HedgeFilled) event()     {}
func (Disconnected) event()    {}

type CommandKind string

const (
	CommandInsert CommandKind = "insert"
	CommandCancel CommandKind = "cancel"
	CommandHedge  CommandKind = "hedge"
)

// Command is an outbound instruction for the exchange gateway. Fields not
// used by a kind are zero.
type Command struct {
	Kind     CommandKind
	OrderID  uint64
	Side     Side
	Price    int64
	Volume   int64
	Lifespan Lifespan
}

func InsertOrder(id uint64, side Side, price, volume int64) Command {
	return Command{Kind: CommandInsert, OrderID: id, Side: side, Price: price, Volume: volume, Lifespan: GoodForDay}
}

func CancelOrder(id uint64) Command {
	return Command{Kind: CommandCancel, OrderID: id}
}

func HedgeOrder(id uint64, side Side, price, volume int64) Command {
	return Command{Kind: CommandHedge, OrderID: id, Side: side, Price: price, Volume: volume}
}
