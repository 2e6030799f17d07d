package timescale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"etf-mm-bot/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

type PositionSnapshot struct {
	Time          time.Time
	RunID         string
	NetPosition   int64
	HedgePosition int64
	PendingSell   int64
	PendingBuy    int64
	AskOrders     int
	BidOrders     int
}

type HedgeFill struct {
	Time    time.Time
	RunID   string
	OrderID uint64
	Price   int64
	Volume  int64
}

type Writer struct {
	db        *sql.DB
	log       *zap.Logger
	schema    string
	positions chan PositionSnapshot
	fills     chan HedgeFill
	started   atomic.Bool
	dropPos   atomic.Uint64
	dropFill  atomic.Uint64
}

// New returns a nil Writer when export is disabled; a nil Writer accepts
// and discards everything.
func New(cfg config.TimescaleConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("timescale dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	writer := newWriter(db, cfg, log)
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func newWriter(db *sql.DB, cfg config.TimescaleConfig, log *zap.Logger) *Writer {
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{
		db:        db,
		log:       log,
		schema:    schema,
		positions: make(chan PositionSnapshot, queueSize),
		fills:     make(chan HedgeFill, queueSize),
	}
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *Writer) EnqueuePosition(snapshot PositionSnapshot) {
	if w == nil {
		return
	}
	select {
	case w.positions <- snapshot:
	default:
		if w.dropPos.Add(1) == 1 {
			w.log.Warn("timescale position queue full")
		}
	}
}

func (w *Writer) EnqueueHedgeFill(fill HedgeFill) {
	if w == nil {
		return
	}
	select {
	case w.fills <- fill:
	default:
		if w.dropFill.Add(1) == 1 {
			w.log.Warn("timescale hedge fill queue full")
		}
	}
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-w.positions:
			w.writePosition(ctx, snap)
		case fill := <-w.fills:
			w.writeHedgeFill(ctx, fill)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("timescale db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		run_id TEXT NOT NULL,
		net_position BIGINT NOT NULL,
		hedge_position BIGINT NOT NULL,
		pending_sell BIGINT NOT NULL,
		pending_buy BIGINT NOT NULL,
		ask_orders INTEGER NOT NULL,
		bid_orders INTEGER NOT NULL
	)`, w.table("position_snapshots"))); err != nil {
		return err
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		run_id TEXT NOT NULL,
		order_id BIGINT NOT NULL,
		price BIGINT NOT NULL,
		volume BIGINT NOT NULL
	)`, w.table("hedge_fills"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		w.log.Warn("timescale extension ensure failed", zap.Error(err))
		return nil
	}
	for _, name := range []string{"position_snapshots", "hedge_fills"} {
		if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table(name))); err != nil {
			w.log.Warn("timescale hypertable create failed", zap.String("table", name), zap.Error(err))
		}
	}
	return nil
}

func (w *Writer) writePosition(ctx context.Context, snap PositionSnapshot) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, run_id, net_position, hedge_position, pending_sell, pending_buy, ask_orders, bid_orders
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, w.table("position_snapshots"))
	if _, err := w.db.ExecContext(ctx, query,
		snap.Time,
		snap.RunID,
		snap.NetPosition,
		snap.HedgePosition,
		snap.PendingSell,
		snap.PendingBuy,
		snap.AskOrders,
		snap.BidOrders,
	); err != nil {
		w.log.Warn("timescale position insert failed", zap.Error(err))
	}
}

func (w *Writer) writeHedgeFill(ctx context.Context, fill HedgeFill) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (ts, run_id, order_id, price, volume) VALUES ($1,$2,$3,$4,$5)`, w.table("hedge_fills"))
	if _, err := w.db.ExecContext(ctx, query,
		fill.Time,
		fill.RunID,
		int64(fill.OrderID),
		fill.Price,
		fill.Volume,
	); err != nil {
		w.log.Warn("timescale hedge fill insert failed", zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
