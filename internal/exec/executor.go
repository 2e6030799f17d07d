package exec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"etf-mm-bot/internal/gateway"
	"etf-mm-bot/internal/metrics"
	"etf-mm-bot/internal/strategy"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
)

type Sender interface {
	Send(ctx context.Context, typ websocket.MessageType, data []byte) error
}

// Executor delivers trader commands to the gateway in the order they were
// emitted, within the exchange's message-rate allowance.
type Executor struct {
	sender  Sender
	codec   gateway.Codec
	limiter *rate.Limiter
	metrics *metrics.Metrics
	log     *zap.Logger

	sendTimeout time.Duration
	attempts    int
	backoff     time.Duration
}

func New(sender Sender, codec gateway.Codec, limiter *rate.Limiter, m *metrics.Metrics, sendTimeout time.Duration, log *zap.Logger) *Executor {
	if m == nil {
		m = metrics.NewNoop()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		sender:      sender,
		codec:       codec,
		limiter:     limiter,
		metrics:     m,
		log:         log,
		sendTimeout: sendTimeout,
		attempts:    3,
		backoff:     50 * time.Millisecond,
	}
}

// Dispatch sends cmds in order and returns the ones that were not delivered.
// A failure does not stop later commands from being attempted.
func (e *Executor) Dispatch(ctx context.Context, cmds []strategy.Command) []strategy.Command {
	var failed []strategy.Command
	for _, cmd := range cmds {
		if err := e.send(ctx, cmd); err != nil {
			e.metrics.SendFailed.Inc()
			e.log.Error("command not delivered",
				zap.String("kind", string(cmd.Kind)),
				zap.Uint64("order_id", cmd.OrderID),
				zap.Error(err),
			)
			failed = append(failed, cmd)
			continue
		}
		switch cmd.Kind {
		case strategy.CommandInsert:
			e.metrics.InsertsSent.Inc()
		case strategy.CommandCancel:
			e.metrics.CancelsSent.Inc()
		case strategy.CommandHedge:
			e.metrics.HedgesSent.Inc()
		}
	}
	return failed
}

func (e *Executor) send(ctx context.Context, cmd strategy.Command) error {
	data, err := e.codec.EncodeCommand(cmd)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}
	return e.retry(ctx, func() error {
		sendCtx := ctx
		if e.sendTimeout > 0 {
			var cancel context.CancelFunc
			sendCtx, cancel = context.WithTimeout(ctx, e.sendTimeout)
			defer cancel()
		}
		return e.sender.Send(sendCtx, e.codec.MessageType(), data)
	})
}

func (e *Executor) retry(ctx context.Context, fn func() error) error {
	backoff := e.backoff
	for attempt := 0; attempt < e.attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, gateway.ErrNotConnected) || attempt == e.attempts-1 {
			return fmt.Errorf("send failed: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return nil
}
