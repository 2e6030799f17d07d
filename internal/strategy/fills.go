package strategy

import "go.uber.org/zap"

type hedgeOrder struct {
	side   Side
	volume int64
	filled int64
}

// applyStatus reconciles an order status into the book and position and
// hedges any newly filled volume.
func (t *Trader) applyStatus(status OrderStatus) []Command {
	order, side, ok := t.book.Lookup(status.OrderID)
	if !ok {
		t.unknownStatuses++
		t.log.Warn("status for untracked order", zap.Uint64("order_id", status.OrderID))
		return nil
	}

	var cmds []Command
	if delta := status.FillVolume - order.Filled; delta > 0 {
		t.position.ApplyFill(side, delta)
		order.Filled = status.FillVolume
		cmds = append(cmds, t.hedge(side.Opposite(), delta))
	} else if delta < 0 {
		t.log.Debug("ignoring stale fill volume",
			zap.Uint64("order_id", status.OrderID),
			zap.Int64("recorded", order.Filled),
			zap.Int64("reported", status.FillVolume),
		)
	}

	remaining := status.RemainingVolume
	if remaining < 0 {
		remaining = 0
	}
	if delta := order.Remaining - remaining; delta > 0 {
		t.position.AddPending(side, -delta)
		order.Remaining = remaining
	} else if delta < 0 {
		t.log.Debug("ignoring remaining volume increase",
			zap.Uint64("order_id", status.OrderID),
			zap.Int64("recorded", order.Remaining),
			zap.Int64("reported", remaining),
		)
	}

	if remaining == 0 {
		t.book.Remove(side, status.OrderID)
		t.log.Info("order resolved",
			zap.Uint64("order_id", status.OrderID),
			zap.Stringer("side", side),
			zap.Int64("filled", order.Filled),
			zap.Int64("net_position", t.position.Net),
		)
	}
	return cmds
}

func (t *Trader) hedge(side Side, volume int64) Command {
	id := t.nextOrderID()
	price := t.minHedgePrice
	if side == Buy {
		price = t.maxHedgePrice
	}
	t.hedges[id] = &hedgeOrder{side: side, volume: volume}
	t.log.Info("hedging fill",
		zap.Uint64("order_id", id),
		zap.Stringer("side", side),
		zap.Int64("price", price),
		zap.Int64("volume", volume),
	)
	return HedgeOrder(id, side, price, volume)
}

func (t *Trader) applyHedgeFill(fill HedgeFilled) {
	t.log.Info("hedge filled",
		zap.Uint64("order_id", fill.OrderID),
		zap.Int64("avg_price", fill.Price),
		zap.Int64("volume", fill.Volume),
	)
	h, ok := t.hedges[fill.OrderID]
	if !ok {
		t.log.Warn("hedge fill for untracked order", zap.Uint64("order_id", fill.OrderID))
		return
	}
	if fill.Price == 0 && fill.Volume == 0 {
		t.log.Warn("hedge order unsuccessful",
			zap.Uint64("order_id", fill.OrderID),
			zap.Int64("unhedged", h.volume-h.filled),
		)
		delete(t.hedges, fill.OrderID)
		return
	}
	if fill.Volume <= 0 {
		return
	}
	h.filled += fill.Volume
	if h.side == Buy {
		t.hedgePosition += fill.Volume
	} else {
		t.hedgePosition -= fill.Volume
	}
	if h.filled >= h.volume {
		delete(t.hedges, fill.OrderID)
	}
}
