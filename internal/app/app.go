package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"etf-mm-bot/internal/alerts"
	"etf-mm-bot/internal/config"
	"etf-mm-bot/internal/exec"
	"etf-mm-bot/internal/gateway"
	"etf-mm-bot/internal/metrics"
	"etf-mm-bot/internal/state"
	"etf-mm-bot/internal/state/sqlite"
	"etf-mm-bot/internal/strategy"
	"etf-mm-bot/internal/timescale"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const undeliveredInsert = "insert not delivered to gateway"

type App struct {
	cfg       *config.Config
	log       *zap.Logger
	runID     string
	store     *sqlite.Store
	journal   *state.Journal
	gateway   *gateway.Client
	codec     gateway.Codec
	executor  *exec.Executor
	metrics   *metrics.Metrics
	prom      *metrics.Prometheus
	timescale *timescale.Writer
	alerts    *alerts.Notifier
	trader    *strategy.Trader
	now       func() time.Time

	published strategy.Snapshot
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	runID := uuid.NewString()
	log = log.With(zap.String("run_id", runID))

	trader, err := strategy.NewTrader(cfg.Strategy, log.Named("trader"))
	if err != nil {
		return nil, err
	}
	codec, err := gateway.NewCodec(cfg.Gateway.Codec)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.State.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}
	ts, err := timescale.New(cfg.Timescale, log.Named("timescale"))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	m := metrics.NewNoop()
	var prom *metrics.Prometheus
	if cfg.Metrics.EnabledValue() {
		prom = metrics.NewPrometheus()
		m = prom.Metrics
	}

	var notifier *alerts.Notifier
	if cfg.Telegram.Enabled {
		notifier = alerts.NewNotifier(alerts.NewTelegram(cfg.Telegram, log), "etf-mm-bot", log.Named("alerts"))
	}

	client := gateway.New(cfg.Gateway.URL, cfg.Gateway.ReconnectDelay, cfg.Gateway.PingInterval, log.Named("gateway"))
	limiter := rate.NewLimiter(rate.Limit(cfg.Gateway.MessageRate), cfg.Gateway.MessageBurst)
	executor := exec.New(client, codec, limiter, m, cfg.Gateway.SendTimeout, log.Named("exec"))

	return &App{
		cfg:       cfg,
		log:       log,
		runID:     runID,
		store:     store,
		journal:   state.NewJournal(store, store, cfg.State.QueueSize, log.Named("journal")),
		gateway:   client,
		codec:     codec,
		executor:  executor,
		metrics:   m,
		prom:      prom,
		timescale: ts,
		alerts:    notifier,
		trader:    trader,
		now:       time.Now,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()
	defer a.timescale.Close()

	// The journal outlives ctx so entries from the final event are written.
	journalCtx, stopJournal := context.WithCancel(context.Background())
	defer stopJournal()
	a.journal.Start(journalCtx)
	a.timescale.Start(ctx)
	a.alerts.Start(ctx)
	metricsErr := a.startMetricsServer(ctx)

	a.log.Info("trading session started",
		zap.String("gateway", a.cfg.Gateway.URL),
		zap.String("codec", a.cfg.Gateway.Codec),
		zap.String("reference_instrument", a.cfg.Strategy.ReferenceInstrument),
	)
	err := a.gateway.Run(ctx,
		func(data []byte) { a.onFrame(ctx, data) },
		func(err error) { a.onDisconnect(ctx, err) },
	)

	stopJournal()
	a.journal.Wait()
	a.alerts.Wait()
	if metricsErr != nil {
		if serveErr := <-metricsErr; serveErr != nil {
			a.log.Warn("metrics server stopped", zap.Error(serveErr))
		}
	}
	a.observeSession()
	snap := a.trader.Snapshot()
	a.log.Info("trading session stopped",
		zap.Int64("net_position", snap.NetPosition),
		zap.Int64("hedge_position", snap.HedgePosition),
		zap.Int("ask_orders", snap.AskOrders),
		zap.Int("bid_orders", snap.BidOrders),
		zap.Int("session_losses", a.gateway.Session().Losses()),
		zap.Uint64("journal_dropped", a.journal.Dropped()),
		zap.Uint64("alerts_dropped", a.alerts.Dropped()),
	)
	return err
}

func (a *App) onFrame(ctx context.Context, data []byte) {
	ev, err := a.codec.DecodeEvent(data)
	if err != nil {
		a.metrics.BadFrames.Inc()
		a.log.Warn("skipping gateway frame", zap.Error(err), zap.Int("bytes", len(data)))
		return
	}
	a.handle(ctx, ev)
}

func (a *App) onDisconnect(ctx context.Context, err error) {
	a.metrics.Disconnects.Inc()
	reason := "connection closed"
	if err != nil {
		reason = err.Error()
	}
	a.alerts.Disconnected(reason)
	a.handle(ctx, strategy.Disconnected{Reason: reason})
}

// handle runs one inbound event through the trader and dispatches the
// resulting commands. An insert the gateway never received is fed back to
// the trader as an error on that order so its slot and pending volume are
// released.
func (a *App) handle(ctx context.Context, ev strategy.Event) {
	a.observe(ev)
	pending := []strategy.Event{ev}
	for len(pending) > 0 {
		next := pending[0]
		pending = pending[1:]

		cmds := a.trader.Handle(next)
		if len(cmds) == 0 {
			continue
		}
		failed := a.executor.Dispatch(ctx, cmds)
		a.auditCommands(cmds, failed)
		for _, cmd := range failed {
			switch cmd.Kind {
			case strategy.CommandInsert:
				pending = append(pending, strategy.ErrorMessage{OrderID: cmd.OrderID, Message: undeliveredInsert})
			case strategy.CommandHedge:
				a.alerts.HedgeUndelivered(cmd)
			}
		}
	}
	a.publish()
}

// observe reports gateway events operators care about before the trader
// consumes them.
func (a *App) observe(ev strategy.Event) {
	switch e := ev.(type) {
	case strategy.ErrorMessage:
		if e.OrderID != 0 {
			a.alerts.OrderError(e.OrderID, e.Message)
		}
	case strategy.HedgeFilled:
		if e.Price == 0 && e.Volume == 0 {
			a.alerts.HedgeUnsuccessful(e.OrderID)
			return
		}
		a.recordHedgeFill(e)
	}
}

func (a *App) auditCommands(cmds, failed []strategy.Command) {
	undelivered := make(map[uint64]bool, len(failed))
	for _, cmd := range failed {
		undelivered[cmd.OrderID] = true
	}
	atMS := a.now().UnixMilli()
	for _, cmd := range cmds {
		rec := state.CommandRecord{
			RunID:     a.runID,
			Kind:      string(cmd.Kind),
			OrderID:   cmd.OrderID,
			Delivered: !undelivered[cmd.OrderID],
			AtMS:      atMS,
		}
		if cmd.Kind != strategy.CommandCancel {
			rec.Side = cmd.Side.String()
			rec.Price = cmd.Price
			rec.Volume = cmd.Volume
		}
		a.journal.EnqueueCommand(rec)
	}
}

func (a *App) publish() {
	a.observeSession()
	snap := a.trader.Snapshot()
	a.metrics.Observe(snap)
	if snap == a.published {
		return
	}
	a.published = snap
	a.journal.EnqueueSnapshot(state.NewTraderSnapshot(a.runID, snap, a.now().UnixMilli()))
	a.recordPosition(snap)
}

func (a *App) observeSession() {
	if a.gateway == nil {
		return
	}
	session := a.gateway.Session()
	a.metrics.ObserveSession(session.State() == gateway.SessionLive, session.Losses())
}

// startMetricsServer returns nil when metrics are disabled. Otherwise the
// returned channel yields the server's exit error once ctx is done.
func (a *App) startMetricsServer(ctx context.Context) <-chan error {
	if a.prom == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Metrics.Path, a.prom.Handler())
	server := &http.Server{
		Addr:              a.cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warn("metrics server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		errCh <- server.Shutdown(shutdownCtx)
	}()
	a.log.Info("metrics server listening", zap.String("address", a.cfg.Metrics.Address), zap.String("path", a.cfg.Metrics.Path))
	return errCh
}
