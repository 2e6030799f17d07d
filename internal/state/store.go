package state

import "context"

type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// CommandRecord is one audited outbound command.
type CommandRecord struct {
	RunID     string `json:"run_id"`
	Kind      string `json:"kind"`
	OrderID   uint64 `json:"order_id"`
	Side      string `json:"side,omitempty"`
	Price     int64  `json:"price,omitempty"`
	Volume    int64  `json:"volume,omitempty"`
	Delivered bool   `json:"delivered"`
	AtMS      int64  `json:"at_ms"`
}

type CommandLog interface {
	AppendCommand(ctx context.Context, rec CommandRecord) error
	Commands(ctx context.Context, runID string, limit int) ([]CommandRecord, error)
}
