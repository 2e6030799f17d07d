package strategy

import (
	"errors"
	"fmt"

	"etf-mm-bot/internal/config"
)

var (
	ErrSellLimit = errors.New("sell exposure would breach position limit")
	ErrBuyLimit  = errors.New("buy exposure would breach position limit")
)

// Position is the confirmed ETF position plus the volume still resting on
// each side.
type Position struct {
	Net         int64
	PendingSell int64
	PendingBuy  int64
}

func (p *Position) Pending(side Side) int64 {
	if side == Sell {
		return p.PendingSell
	}
	return p.PendingBuy
}

func (p *Position) AddPending(side Side, volume int64) {
	if side == Sell {
		p.PendingSell += volume
		return
	}
	p.PendingBuy += volume
}

func (p *Position) ApplyFill(side Side, volume int64) {
	if side == Sell {
		p.Net -= volume
		return
	}
	p.Net += volume
}

// CheckExposure reports whether one more lot on side keeps the worst case
// position within the limit, assuming every resting order fills.
func CheckExposure(cfg config.StrategyConfig, pos Position, side Side) error {
	switch side {
	case Sell:
		if worst := pos.Net - pos.PendingSell - cfg.LotSize; worst < -cfg.PositionLimit {
			return fmt.Errorf("worst case %d below -%d: %w", worst, cfg.PositionLimit, ErrSellLimit)
		}
	case Buy:
		if worst := pos.Net + pos.PendingBuy + cfg.LotSize; worst > cfg.PositionLimit {
			return fmt.Errorf("worst case %d above %d: %w", worst, cfg.PositionLimit, ErrBuyLimit)
		}
	}
	return nil
}
