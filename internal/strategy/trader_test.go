package strategy

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"etf-mm-bot/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() config.StrategyConfig {
	return config.StrategyConfig{
		LotSize:             10,
		MaxOrderDepth:       5,
		PositionLimit:       100,
		TickSize:            100,
		MinPrice:            1,
		MaxPrice:            2147483647,
		ReferenceInstrument: config.InstrumentFuture,
	}
}

func newTestTrader(t *testing.T) *Trader {
	t.Helper()
	tr, err := NewTrader(testConfig(), zap.NewNop())
	require.NoError(t, err)
	return tr
}

func futureBook(seq uint64, ask, bid int64) OrderBookUpdate {
	update := OrderBookUpdate{Instrument: InstrumentFuture, Sequence: seq}
	update.AskPrices[0] = ask
	update.BidPrices[0] = bid
	if ask != 0 {
		update.AskVolumes[0] = 50
	}
	if bid != 0 {
		update.BidVolumes[0] = 50
	}
	return update
}

func TestNewTraderRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.TickSize = 0
	_, err := NewTrader(cfg, nil)
	require.Error(t, err)

	cfg = testConfig()
	cfg.ReferenceInstrument = "bond"
	_, err = NewTrader(cfg, nil)
	require.Error(t, err)
}

func TestPlacesOneAskBehindBestAsk(t *testing.T) {
	tr := newTestTrader(t)

	cmds := tr.Handle(futureBook(1, 10000, 0))
	require.Equal(t, []Command{InsertOrder(1, Sell, 10100, 10)}, cmds)

	snap := tr.Snapshot()
	assert.Equal(t, 1, snap.AskOrders)
	assert.Equal(t, int64(10), snap.PendingSell)
	assert.Equal(t, 0, snap.BidOrders)

	cmds = tr.Handle(futureBook(2, 10000, 0))
	assert.Empty(t, cmds, "already quoting at target")
	assert.Equal(t, 1, tr.Snapshot().AskOrders)
}

func TestBidDropCancelsOvertakenOrder(t *testing.T) {
	tr := newTestTrader(t)

	cmds := tr.Handle(futureBook(1, 0, 9900))
	require.Equal(t, []Command{InsertOrder(1, Buy, 9800, 10)}, cmds)

	cmds = tr.Handle(futureBook(2, 0, 9800))
	require.Equal(t, []Command{
		CancelOrder(1),
		InsertOrder(2, Buy, 9700, 10),
	}, cmds)

	snap := tr.Snapshot()
	assert.Equal(t, 2, snap.BidOrders)
	assert.Equal(t, 1, snap.BidsCancelling)
	assert.Equal(t, int64(20), snap.PendingBuy)
}

func TestCancelIsNotRepeated(t *testing.T) {
	tr := newTestTrader(t)
	tr.Handle(futureBook(1, 10000, 0))

	cmds := tr.Handle(futureBook(2, 10200, 0))
	require.Equal(t, []Command{CancelOrder(1), InsertOrder(2, Sell, 10300, 10)}, cmds)

	cmds = tr.Handle(futureBook(3, 10200, 0))
	assert.Empty(t, cmds)
	cmds = tr.Handle(futureBook(4, 10400, 0))
	assert.Equal(t, []Command{CancelOrder(2), InsertOrder(3, Sell, 10500, 10)}, cmds)
}

func TestFullFillRemovesOrderAndHedges(t *testing.T) {
	tr := newTestTrader(t)
	tr.Handle(futureBook(1, 10000, 0))

	cmds := tr.Handle(OrderStatus{OrderID: 1, FillVolume: 10, RemainingVolume: 0, Fees: -2})
	require.Len(t, cmds, 1)
	assert.Equal(t, HedgeOrder(2, Buy, 2147483600, 10), cmds[0])

	snap := tr.Snapshot()
	assert.Equal(t, int64(-10), snap.NetPosition)
	assert.Equal(t, 0, snap.AskOrders)
	assert.Equal(t, int64(0), snap.PendingSell)
	assert.Equal(t, 1, snap.OutstandingHedges)
	assert.False(t, tr.Tracks(1))
}

func TestBuyFillHedgesWithSellAtMinimum(t *testing.T) {
	tr := newTestTrader(t)
	tr.Handle(futureBook(1, 0, 9900))

	cmds := tr.Handle(OrderStatus{OrderID: 1, FillVolume: 10, RemainingVolume: 0})
	require.Equal(t, []Command{HedgeOrder(2, Sell, 100, 10)}, cmds)
	assert.Equal(t, int64(10), tr.Snapshot().NetPosition)
}

func TestPartialFillsHedgeOnlyTheDelta(t *testing.T) {
	tr := newTestTrader(t)
	tr.Handle(futureBook(1, 10000, 0))

	cmds := tr.Handle(OrderStatus{OrderID: 1, FillVolume: 4, RemainingVolume: 6})
	require.Equal(t, []Command{HedgeOrder(2, Buy, 2147483600, 4)}, cmds)
	assert.Equal(t, int64(6), tr.Snapshot().PendingSell)

	cmds = tr.Handle(OrderStatus{OrderID: 1, FillVolume: 4, RemainingVolume: 6})
	assert.Empty(t, cmds, "duplicate status must not hedge twice")
	assert.Equal(t, int64(-4), tr.Snapshot().NetPosition)

	cmds = tr.Handle(OrderStatus{OrderID: 1, FillVolume: 10, RemainingVolume: 0})
	require.Equal(t, []Command{HedgeOrder(3, Buy, 2147483600, 6)}, cmds)
	snap := tr.Snapshot()
	assert.Equal(t, int64(-10), snap.NetPosition)
	assert.Equal(t, int64(0), snap.PendingSell)
	assert.Equal(t, 0, snap.AskOrders)
}

func TestReorderedStatusDoesNotRollBack(t *testing.T) {
	tr := newTestTrader(t)
	tr.Handle(futureBook(1, 10000, 0))

	tr.Handle(OrderStatus{OrderID: 1, FillVolume: 6, RemainingVolume: 4})
	cmds := tr.Handle(OrderStatus{OrderID: 1, FillVolume: 4, RemainingVolume: 6})
	assert.Empty(t, cmds)

	snap := tr.Snapshot()
	assert.Equal(t, int64(-6), snap.NetPosition)
	assert.Equal(t, int64(4), snap.PendingSell)
	order, _, ok := tr.book.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, int64(6), order.Filled)
	assert.Equal(t, int64(4), order.Remaining)
}

func TestCancelConfirmationReleasesPending(t *testing.T) {
	tr := newTestTrader(t)
	tr.Handle(futureBook(1, 10000, 0))
	tr.Handle(futureBook(2, 10200, 0))

	cmds := tr.Handle(OrderStatus{OrderID: 1, FillVolume: 0, RemainingVolume: 0})
	assert.Empty(t, cmds)
	snap := tr.Snapshot()
	assert.Equal(t, 1, snap.AskOrders)
	assert.Equal(t, 0, snap.AsksCancelling)
	assert.Equal(t, int64(10), snap.PendingSell)
	assert.Equal(t, int64(0), snap.NetPosition)
}

func TestStaleOrderBookLeavesStateUntouched(t *testing.T) {
	tr := newTestTrader(t)
	tr.Handle(futureBook(5, 10000, 9900))
	before := tr.Snapshot()

	assert.Empty(t, tr.Handle(futureBook(5, 12000, 11900)))
	assert.Empty(t, tr.Handle(futureBook(3, 8000, 7900)))

	after := tr.Snapshot()
	assert.Equal(t, before.StaleBooks+2, after.StaleBooks)
	after.StaleBooks = before.StaleBooks
	assert.Equal(t, before, after)
}

func TestOnlyReferenceInstrumentDrivesQuotes(t *testing.T) {
	tr := newTestTrader(t)
	etf := futureBook(7, 10000, 9900)
	etf.Instrument = InstrumentETF

	assert.Empty(t, tr.Handle(etf))
	assert.Equal(t, uint64(7), tr.Snapshot().LastSequence)

	cmds := tr.Handle(futureBook(8, 10000, 9900))
	assert.Len(t, cmds, 2)
}

func TestSequenceIsSharedAcrossInstruments(t *testing.T) {
	tr := newTestTrader(t)
	etf := futureBook(10, 10000, 9900)
	etf.Instrument = InstrumentETF
	tr.Handle(etf)
	before := tr.Snapshot()

	assert.Empty(t, tr.Handle(futureBook(3, 10000, 9900)))

	after := tr.Snapshot()
	assert.Equal(t, before.StaleBooks+1, after.StaleBooks)
	after.StaleBooks = before.StaleBooks
	assert.Equal(t, before, after)
}

func TestUnknownInstrumentIgnored(t *testing.T) {
	tr := newTestTrader(t)
	update := futureBook(1, 10000, 9900)
	update.Instrument = Instrument(9)
	assert.Empty(t, tr.Handle(update))
	assert.Equal(t, uint64(0), tr.Snapshot().LastSequence)
}

func TestEmptyAskSidePullsQuotes(t *testing.T) {
	tr := newTestTrader(t)
	tr.Handle(futureBook(1, 10000, 9900))

	cmds := tr.Handle(futureBook(2, 0, 0))
	assert.Equal(t, []Command{CancelOrder(1), CancelOrder(2)}, cmds)
}

func TestUnquotableTouchPullsQuotes(t *testing.T) {
	tr := newTestTrader(t)
	require.Equal(t, []Command{
		InsertOrder(1, Sell, 10100, 10),
		InsertOrder(2, Buy, 9800, 10),
	}, tr.Handle(futureBook(1, 10000, 9900)))

	cmds := tr.Handle(futureBook(2, math.MaxInt64-10, 50))
	assert.Equal(t, []Command{CancelOrder(1), CancelOrder(2)}, cmds, "ask past max price and bid below one tick are not quotable")

	assert.Empty(t, tr.Handle(futureBook(3, -50, -50)))
	snap := tr.Snapshot()
	assert.Equal(t, int64(10), snap.PendingSell)
	assert.Equal(t, int64(10), snap.PendingBuy)
}

func TestNegativeTouchPlacesNothing(t *testing.T) {
	tr := newTestTrader(t)
	assert.Empty(t, tr.Handle(futureBook(1, -50, -50)))
	assert.Equal(t, uint64(1), tr.Snapshot().NextOrderID)
}

func TestTargetDoesNotOverflowAtMaxInt64(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPrice = math.MaxInt64
	tr, err := NewTrader(cfg, zap.NewNop())
	require.NoError(t, err)

	cmds := tr.Handle(futureBook(1, math.MaxInt64-10, math.MaxInt64-10))
	require.Len(t, cmds, 1)
	assert.Equal(t, InsertOrder(1, Buy, math.MaxInt64-110, 10), cmds[0])
	for _, cmd := range cmds {
		assert.GreaterOrEqual(t, cmd.Price, int64(0))
	}
}

func TestBidDepthEvictionCancelsLowestBid(t *testing.T) {
	tr := newTestTrader(t)
	bids := []int64{10000, 10100, 10200, 10300}
	for i, bid := range bids {
		cmds := tr.Handle(futureBook(uint64(i+1), 0, bid))
		require.Equal(t, []Command{InsertOrder(uint64(i+1), Buy, bid-100, 10)}, cmds)
	}
	require.Equal(t, 4, tr.Snapshot().BidOrders)

	cmds := tr.Handle(futureBook(5, 0, 10400))
	require.Equal(t, []Command{
		CancelOrder(1),
		InsertOrder(5, Buy, 10300, 10),
	}, cmds, "lowest bid is evicted at the last free slot")

	cmds = tr.Handle(futureBook(6, 0, 10500))
	require.Equal(t, []Command{CancelOrder(2)}, cmds, "full depth places nothing")
	assert.Equal(t, 2, tr.Snapshot().BidsCancelling)
}

func TestDepthEvictionKeepsRoomForNewQuote(t *testing.T) {
	tr := newTestTrader(t)
	asks := []int64{10000, 9900, 9800, 9700}
	for i, ask := range asks {
		cmds := tr.Handle(futureBook(uint64(i+1), ask, 0))
		require.Equal(t, []Command{InsertOrder(uint64(i+1), Sell, ask+100, 10)}, cmds)
	}
	require.Equal(t, 4, tr.Snapshot().AskOrders)

	cmds := tr.Handle(futureBook(5, 9600, 0))
	require.Equal(t, []Command{
		CancelOrder(1),
		InsertOrder(5, Sell, 9700, 10),
	}, cmds, "farthest ask is evicted at the last free slot")

	cmds = tr.Handle(futureBook(6, 9500, 0))
	require.Equal(t, []Command{CancelOrder(2)}, cmds, "full depth places nothing")

	tr.Handle(OrderStatus{OrderID: 1, RemainingVolume: 0})
	tr.Handle(OrderStatus{OrderID: 2, RemainingVolume: 0})
	cmds = tr.Handle(futureBook(7, 9500, 0))
	assert.Equal(t, []Command{InsertOrder(6, Sell, 9600, 10)}, cmds, "confirmed cancels free their slots")
	assert.Equal(t, 4, tr.Snapshot().AskOrders)
}

func TestExposureBoundaryIsInclusive(t *testing.T) {
	tr := newTestTrader(t)
	tr.position.Net = 90

	cmds := tr.Handle(futureBook(1, 0, 9900))
	require.Equal(t, []Command{InsertOrder(1, Buy, 9800, 10)}, cmds, "90+0+10 reaches the limit exactly")

	tr = newTestTrader(t)
	tr.position.Net = 91
	assert.Empty(t, tr.Handle(futureBook(1, 0, 9900)), "one lot beyond the limit")

	tr = newTestTrader(t)
	tr.position.Net = -91
	assert.Empty(t, tr.Handle(futureBook(1, 10000, 0)))
}

func TestPendingVolumeLimitsQuotesBeforeFills(t *testing.T) {
	tr := newTestTrader(t)
	cfg := testConfig()
	cfg.PositionLimit = 20
	cfg.MaxOrderDepth = 10
	tr.cfg = cfg

	tr.Handle(futureBook(1, 0, 9900))
	tr.Handle(futureBook(2, 0, 10000))
	cmds := tr.Handle(futureBook(3, 0, 10100))
	assert.Empty(t, cmds, "two resting lots exhaust the limit")
	assert.Equal(t, int64(20), tr.Snapshot().PendingBuy)
}

func TestErrorOnTrackedOrderForcesCleanup(t *testing.T) {
	tr := newTestTrader(t)
	tr.Handle(futureBook(1, 10000, 9900))

	cmds := tr.Handle(ErrorMessage{OrderID: 2, Message: "order rejected"})
	assert.Empty(t, cmds)
	snap := tr.Snapshot()
	assert.Equal(t, 0, snap.BidOrders)
	assert.Equal(t, int64(0), snap.PendingBuy)
	assert.Equal(t, 1, snap.AskOrders)

	before := tr.Snapshot()
	assert.Empty(t, tr.Handle(ErrorMessage{Message: "session warning"}))
	assert.Empty(t, tr.Handle(ErrorMessage{OrderID: 99, Message: "unknown"}))
	assert.Equal(t, before, tr.Snapshot())
}

func TestUnknownStatusIgnored(t *testing.T) {
	tr := newTestTrader(t)
	assert.Empty(t, tr.Handle(OrderStatus{OrderID: 42, FillVolume: 10}))
	snap := tr.Snapshot()
	assert.Equal(t, uint64(1), snap.UnknownStatuses)
	assert.Equal(t, int64(0), snap.NetPosition)
}

func TestHedgeFillsTrackHedgePosition(t *testing.T) {
	tr := newTestTrader(t)
	tr.Handle(futureBook(1, 10000, 0))
	tr.Handle(OrderStatus{OrderID: 1, FillVolume: 10, RemainingVolume: 0})

	tr.Handle(HedgeFilled{OrderID: 2, Price: 10050, Volume: 4})
	snap := tr.Snapshot()
	assert.Equal(t, int64(4), snap.HedgePosition)
	assert.Equal(t, 1, snap.OutstandingHedges)

	tr.Handle(HedgeFilled{OrderID: 2, Price: 10060, Volume: 6})
	snap = tr.Snapshot()
	assert.Equal(t, int64(10), snap.HedgePosition)
	assert.Equal(t, 0, snap.OutstandingHedges)
	assert.Equal(t, int64(0), snap.NetPosition+snap.HedgePosition)
}

func TestUnsuccessfulHedgeRetired(t *testing.T) {
	tr := newTestTrader(t)
	tr.Handle(futureBook(1, 0, 9900))
	tr.Handle(OrderStatus{OrderID: 1, FillVolume: 10, RemainingVolume: 0})

	tr.Handle(HedgeFilled{OrderID: 2})
	snap := tr.Snapshot()
	assert.Equal(t, 0, snap.OutstandingHedges)
	assert.Equal(t, int64(0), snap.HedgePosition)
}

func TestLoggedOnlyEventsEmitNothing(t *testing.T) {
	tr := newTestTrader(t)
	before := tr.Snapshot()
	events := []Event{
		TradeTicks{Instrument: InstrumentETF, Sequence: 1},
		OrderFilled{OrderID: 3, Price: 100, Volume: 1},
		Disconnected{Reason: "eof"},
		nil,
	}
	for _, ev := range events {
		assert.Empty(t, tr.Handle(ev))
	}
	assert.Equal(t, before, tr.Snapshot())
}

func TestOrderIDsStrictlyIncrease(t *testing.T) {
	tr := newTestTrader(t)
	var last uint64
	seq := uint64(0)
	for _, prices := range [][2]int64{{10000, 9900}, {10100, 9800}, {10000, 9900}, {9900, 10000}} {
		seq++
		for _, cmd := range tr.Handle(futureBook(seq, prices[0], prices[1])) {
			if cmd.Kind == CommandInsert {
				require.Greater(t, cmd.OrderID, last)
				last = cmd.OrderID
			}
		}
	}
	require.NotZero(t, last)
}

// TestRandomTimelineKeepsInvariants drives the trader with a simulated
// exchange and checks the exposure and depth limits after every event.
func TestRandomTimelineKeepsInvariants(t *testing.T) {
	tr := newTestTrader(t)
	cfg := testConfig()
	rng := rand.New(rand.NewSource(7))

	type live struct {
		side      Side
		filled    int64
		remaining int64
	}
	exchange := make(map[uint64]*live)
	var pending []Event
	var seq uint64
	mid := int64(10000)

	check := func() {
		snap := tr.Snapshot()
		require.GreaterOrEqual(t, snap.NetPosition-snap.PendingSell, -cfg.PositionLimit)
		require.LessOrEqual(t, snap.NetPosition+snap.PendingBuy, cfg.PositionLimit)
		require.LessOrEqual(t, snap.AskOrders-snap.AsksCancelling, cfg.MaxOrderDepth)
		require.LessOrEqual(t, snap.BidOrders-snap.BidsCancelling, cfg.MaxOrderDepth)
		require.GreaterOrEqual(t, snap.PendingSell, int64(0))
		require.GreaterOrEqual(t, snap.PendingBuy, int64(0))
	}
	apply := func(cmds []Command) {
		for _, cmd := range cmds {
			switch cmd.Kind {
			case CommandInsert:
				exchange[cmd.OrderID] = &live{side: cmd.Side, remaining: cmd.Volume}
			case CommandCancel:
				if o, ok := exchange[cmd.OrderID]; ok {
					o.remaining = 0
					pending = append(pending, OrderStatus{OrderID: cmd.OrderID, FillVolume: o.filled})
					delete(exchange, cmd.OrderID)
				}
			}
		}
	}

	for step := 0; step < 2000; step++ {
		switch rng.Intn(4) {
		case 0, 1:
			mid += int64(rng.Intn(5)-2) * 100
			if mid < 1000 {
				mid = 1000
			}
			seq += uint64(rng.Intn(2))
			apply(tr.Handle(futureBook(seq, mid+100, mid-100)))
		case 2:
			if len(exchange) == 0 {
				break
			}
			ids := make([]uint64, 0, len(exchange))
			for id := range exchange {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			id := ids[rng.Intn(len(ids))]
			o := exchange[id]
			fill := int64(rng.Intn(int(o.remaining)) + 1)
			o.filled += fill
			o.remaining -= fill
			pending = append(pending, OrderStatus{OrderID: id, FillVolume: o.filled, RemainingVolume: o.remaining})
			if o.remaining == 0 {
				delete(exchange, id)
			}
		case 3:
			if len(pending) > 0 {
				i := rng.Intn(len(pending))
				ev := pending[i]
				pending = append(pending[:i], pending[i+1:]...)
				apply(tr.Handle(ev))
				if rng.Intn(5) == 0 {
					apply(tr.Handle(ev))
				}
			}
		}
		check()
	}
}
