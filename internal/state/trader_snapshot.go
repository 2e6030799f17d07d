package state

import (
	"context"
	"encoding/json"
	"strings"

	"etf-mm-bot/internal/strategy"
)

const TraderSnapshotKey = "trader:last_snapshot"

// TraderSnapshot is written for operators and the replay inspector. It is
// never loaded back into a trader.
type TraderSnapshot struct {
	RunID             string `json:"run_id"`
	NetPosition       int64  `json:"net_position"`
	HedgePosition     int64  `json:"hedge_position"`
	PendingSell       int64  `json:"pending_sell"`
	PendingBuy        int64  `json:"pending_buy"`
	AskOrders         int    `json:"ask_orders"`
	BidOrders         int    `json:"bid_orders"`
	OutstandingHedges int    `json:"outstanding_hedges"`
	LastSequence      uint64 `json:"last_sequence"`
	NextOrderID       uint64 `json:"next_order_id"`
	StaleBooks        uint64 `json:"stale_books"`
	UnknownStatuses   uint64 `json:"unknown_statuses"`
	UpdatedAtMS       int64  `json:"updated_at_ms"`
}

func NewTraderSnapshot(runID string, s strategy.Snapshot, atMS int64) TraderSnapshot {
	return TraderSnapshot{
		RunID:             runID,
		NetPosition:       s.NetPosition,
		HedgePosition:     s.HedgePosition,
		PendingSell:       s.PendingSell,
		PendingBuy:        s.PendingBuy,
		AskOrders:         s.AskOrders,
		BidOrders:         s.BidOrders,
		OutstandingHedges: s.OutstandingHedges,
		LastSequence:      s.LastSequence,
		NextOrderID:       s.NextOrderID,
		StaleBooks:        s.StaleBooks,
		UnknownStatuses:   s.UnknownStatuses,
		UpdatedAtMS:       atMS,
	}
}

func LoadTraderSnapshot(ctx context.Context, store Store) (TraderSnapshot, bool, error) {
	if store == nil {
		return TraderSnapshot{}, false, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	raw, ok, err := store.Get(ctx, TraderSnapshotKey)
	if err != nil {
		return TraderSnapshot{}, false, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return TraderSnapshot{}, false, nil
	}
	var snapshot TraderSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return TraderSnapshot{}, false, err
	}
	return snapshot, true, nil
}

func SaveTraderSnapshot(ctx context.Context, store Store, snapshot TraderSnapshot) error {
	if store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return store.Set(ctx, TraderSnapshotKey, string(payload))
}
