package strategy

import "go.uber.org/zap"

// sideRules parameterizes repricing by side. sign is +1 for asks and -1 for
// bids: the quote sits one tick behind the touch, a resting order with
// sign*(price-target) < 0 has been overtaken by the market, and the order
// with the largest sign*price is the one farthest from the touch.
type sideRules struct {
	side Side
	sign int64
}

var (
	askRules = sideRules{side: Sell, sign: 1}
	bidRules = sideRules{side: Buy, sign: -1}
)

// target is the quote price for a side. When there is no usable touch, or
// the quote would leave [0, max_price], it returns the pull price (max_price
// for asks, 0 for bids) and false: every resting order is overtaken and
// nothing new is placed.
func (r sideRules) target(best int64, t *Trader) (int64, bool) {
	pull := int64(0)
	if r.side == Sell {
		pull = t.cfg.MaxPrice
	}
	if best <= 0 {
		return pull, false
	}
	if r.side == Sell && best > t.cfg.MaxPrice-t.cfg.TickSize {
		return pull, false
	}
	if r.side == Buy && (best < t.cfg.TickSize || best-t.cfg.TickSize > t.cfg.MaxPrice) {
		return pull, false
	}
	return best + r.sign*t.cfg.TickSize, true
}

func (r sideRules) overtaken(price, target int64) bool {
	return r.sign*(price-target) < 0
}

func (r sideRules) fartherOrEqual(price, than int64) bool {
	return r.sign*price >= r.sign*than
}

func (t *Trader) reprice(update OrderBookUpdate) []Command {
	var cmds []Command
	cmds = t.repriceSide(askRules, update.AskPrices[0], cmds)
	cmds = t.repriceSide(bidRules, update.BidPrices[0], cmds)
	return cmds
}

func (t *Trader) repriceSide(r sideRules, best int64, cmds []Command) []Command {
	target, quotable := r.target(best, t)

	var (
		atTarget    bool
		cancelling  int
		candidateID uint64
		candidate   *Order
	)
	for _, id := range t.book.IDs(r.side) {
		order := t.book.Get(r.side, id)
		if order.Cancelling {
			cancelling++
			continue
		}
		if order.Price == target {
			atTarget = true
		}
		if r.overtaken(order.Price, target) {
			order.Cancelling = true
			cmds = append(cmds, CancelOrder(id))
			continue
		}
		if candidate == nil || r.fartherOrEqual(order.Price, candidate.Price) {
			candidateID, candidate = id, order
		}
	}

	count := t.book.Count(r.side)
	t.log.Debug("repricing side",
		zap.Stringer("side", r.side),
		zap.Int64("target", target),
		zap.Int("resting", count),
		zap.Int("already_cancelling", cancelling),
	)

	if candidate != nil && !candidate.Cancelling && count >= t.cfg.MaxOrderDepth-1 {
		t.log.Info("cancelling order to make room",
			zap.Stringer("side", r.side),
			zap.Uint64("order_id", candidateID),
			zap.Int64("price", candidate.Price),
		)
		candidate.Cancelling = true
		cmds = append(cmds, CancelOrder(candidateID))
	}

	if atTarget || count >= t.cfg.MaxOrderDepth || !quotable {
		return cmds
	}
	if err := CheckExposure(t.cfg, t.position, r.side); err != nil {
		t.log.Debug("skipping quote", zap.Stringer("side", r.side), zap.Error(err))
		return cmds
	}

	id := t.nextOrderID()
	t.book.Add(r.side, id, &Order{Price: target, Remaining: t.cfg.LotSize})
	t.position.AddPending(r.side, t.cfg.LotSize)
	t.log.Info("placing quote",
		zap.Stringer("side", r.side),
		zap.Uint64("order_id", id),
		zap.Int64("price", target),
		zap.Int64("volume", t.cfg.LotSize),
	)
	return append(cmds, InsertOrder(id, r.side, target, t.cfg.LotSize))
}
