package alerts

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"etf-mm-bot/internal/strategy"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Sender interface {
	Send(ctx context.Context, message string) error
}

// Notifier formats operator alerts and delivers them off the event path.
// Alerts past the queue or the rate allowance are dropped and counted.
type Notifier struct {
	sender  Sender
	prefix  string
	limiter *rate.Limiter
	log     *zap.Logger
	queue   chan string
	dropped atomic.Uint64
	wg      sync.WaitGroup
}

func NewNotifier(sender Sender, prefix string, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		sender:  sender,
		prefix:  prefix,
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 5),
		log:     log,
		queue:   make(chan string, 64),
	}
}

func (n *Notifier) Start(ctx context.Context) {
	if n == nil || n.sender == nil {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-n.queue:
				sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				if err := n.sender.Send(sendCtx, msg); err != nil {
					n.log.Warn("alert delivery failed", zap.Error(err))
				}
				cancel()
			}
		}
	}()
}

func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

func (n *Notifier) Dropped() uint64 {
	if n == nil {
		return 0
	}
	return n.dropped.Load()
}

func (n *Notifier) Disconnected(reason string) {
	n.notify(fmt.Sprintf("gateway connection lost: %s", reason))
}

func (n *Notifier) OrderError(orderID uint64, message string) {
	n.notify(fmt.Sprintf("order %d rejected: %s", orderID, message))
}

// HedgeUndelivered reports a hedge the gateway never received; the fill it
// covers is unhedged.
func (n *Notifier) HedgeUndelivered(cmd strategy.Command) {
	n.notify(fmt.Sprintf("hedge %d not delivered: %s %d @ %d, position unhedged", cmd.OrderID, cmd.Side, cmd.Volume, cmd.Price))
}

func (n *Notifier) HedgeUnsuccessful(orderID uint64) {
	n.notify(fmt.Sprintf("hedge %d unsuccessful, position unhedged", orderID))
}

func (n *Notifier) notify(msg string) {
	if n == nil || n.sender == nil {
		return
	}
	if n.prefix != "" {
		msg = "[" + n.prefix + "] " + msg
	}
	if !n.limiter.Allow() {
		n.dropped.Add(1)
		n.log.Debug("alert rate limited", zap.String("message", msg))
		return
	}
	select {
	case n.queue <- msg:
	default:
		n.dropped.Add(1)
		n.log.Warn("alert queue full", zap.String("message", msg))
	}
}
