package app

import (
	"etf-mm-bot/internal/strategy"
	"etf-mm-bot/internal/timescale"
)

func (a *App) recordPosition(snap strategy.Snapshot) {
	if a.timescale == nil {
		return
	}
	a.timescale.EnqueuePosition(timescale.PositionSnapshot{
		Time:          a.now().UTC(),
		RunID:         a.runID,
		NetPosition:   snap.NetPosition,
		HedgePosition: snap.HedgePosition,
		PendingSell:   snap.PendingSell,
		PendingBuy:    snap.PendingBuy,
		AskOrders:     snap.AskOrders,
		BidOrders:     snap.BidOrders,
	})
}

func (a *App) recordHedgeFill(fill strategy.HedgeFilled) {
	if a.timescale == nil || fill.Volume <= 0 {
		return
	}
	a.timescale.EnqueueHedgeFill(timescale.HedgeFill{
		Time:    a.now().UTC(),
		RunID:   a.runID,
		OrderID: fill.OrderID,
		Price:   fill.Price,
		Volume:  fill.Volume,
	})
}
