package exec

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"etf-mm-bot/internal/gateway"
	"etf-mm-bot/internal/metrics"
	"etf-mm-bot/internal/strategy"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
)

type mockSender struct {
	mu       sync.Mutex
	frames   [][]byte
	types    []websocket.MessageType
	failures map[int]error // keyed by call index
	calls    int
}

func (m *mockSender) Send(ctx context.Context, typ websocket.MessageType, data []byte) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	call := m.calls
	m.calls++
	if err, ok := m.failures[call]; ok {
		return err
	}
	m.frames = append(m.frames, data)
	m.types = append(m.types, typ)
	return nil
}

type countCounter struct{ n int }

func (c *countCounter) Inc() { c.n++ }

func newTestExecutor(sender Sender, m *metrics.Metrics) *Executor {
	e := New(sender, gateway.JSONCodec{}, nil, m, time.Second, zap.NewNop())
	e.backoff = time.Millisecond
	return e
}

func TestDispatchSendsInOrder(t *testing.T) {
	sender := &mockSender{}
	inserts, cancels, hedges := &countCounter{}, &countCounter{}, &countCounter{}
	m := metrics.NewNoop()
	m.InsertsSent, m.CancelsSent, m.HedgesSent = inserts, cancels, hedges
	executor := newTestExecutor(sender, m)

	failed := executor.Dispatch(context.Background(), []strategy.Command{
		strategy.CancelOrder(1),
		strategy.InsertOrder(2, strategy.Sell, 10100, 10),
		strategy.HedgeOrder(3, strategy.Buy, 2147483600, 10),
	})
	if len(failed) != 0 {
		t.Fatalf("expected no failures, got %v", failed)
	}
	if len(sender.frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(sender.frames))
	}
	wantTypes := []string{gateway.CommandCancelOrder, gateway.CommandInsertOrder, gateway.CommandHedgeOrder}
	for i, frame := range sender.frames {
		var w gateway.CommandWire
		if err := json.Unmarshal(frame, &w); err != nil {
			t.Fatalf("decode frame %d: %v", i, err)
		}
		if w.Type != wantTypes[i] || w.OrderID != uint64(i+1) {
			t.Fatalf("frame %d: unexpected %+v", i, w)
		}
		if sender.types[i] != websocket.MessageText {
			t.Fatalf("frame %d: expected text frame", i)
		}
	}
	if inserts.n != 1 || cancels.n != 1 || hedges.n != 1 {
		t.Fatalf("unexpected counters: inserts=%d cancels=%d hedges=%d", inserts.n, cancels.n, hedges.n)
	}
}

func TestDispatchRetriesTransientFailure(t *testing.T) {
	sender := &mockSender{failures: map[int]error{0: errors.New("write timeout")}}
	executor := newTestExecutor(sender, nil)

	failed := executor.Dispatch(context.Background(), []strategy.Command{strategy.InsertOrder(1, strategy.Buy, 9900, 10)})
	if len(failed) != 0 {
		t.Fatalf("expected retry to succeed, got failures %v", failed)
	}
	if sender.calls != 2 || len(sender.frames) != 1 {
		t.Fatalf("expected 2 calls and 1 delivered frame, got %d calls %d frames", sender.calls, len(sender.frames))
	}
}

func TestDispatchReturnsUndeliveredCommands(t *testing.T) {
	sender := &mockSender{failures: map[int]error{0: gateway.ErrNotConnected}}
	sendFailed := &countCounter{}
	m := metrics.NewNoop()
	m.SendFailed = sendFailed
	executor := newTestExecutor(sender, m)

	insert := strategy.InsertOrder(1, strategy.Sell, 10100, 10)
	cancel := strategy.CancelOrder(7)
	failed := executor.Dispatch(context.Background(), []strategy.Command{insert, cancel})
	if len(failed) != 1 || failed[0] != insert {
		t.Fatalf("expected only the insert to fail, got %v", failed)
	}
	if sender.calls != 2 {
		t.Fatalf("expected no retry when not connected, got %d calls", sender.calls)
	}
	if sendFailed.n != 1 {
		t.Fatalf("expected 1 send failure, got %d", sendFailed.n)
	}
}

func TestDispatchGivesUpAfterAttempts(t *testing.T) {
	boom := errors.New("broken pipe")
	sender := &mockSender{failures: map[int]error{0: boom, 1: boom, 2: boom}}
	executor := newTestExecutor(sender, nil)

	failed := executor.Dispatch(context.Background(), []strategy.Command{strategy.HedgeOrder(4, strategy.Sell, 100, 10)})
	if len(failed) != 1 {
		t.Fatalf("expected hedge to fail, got %v", failed)
	}
	if sender.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", sender.calls)
	}
}

func TestDispatchStopsWaitingOnCancelledContext(t *testing.T) {
	sender := &mockSender{}
	executor := New(sender, gateway.JSONCodec{}, rate.NewLimiter(rate.Every(time.Hour), 1), nil, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())

	if failed := executor.Dispatch(ctx, []strategy.Command{strategy.CancelOrder(1)}); len(failed) != 0 {
		t.Fatalf("first command should use the burst, got %v", failed)
	}
	cancel()
	failed := executor.Dispatch(ctx, []strategy.Command{strategy.CancelOrder(2)})
	if len(failed) != 1 {
		t.Fatalf("expected rate-limited command to fail after cancel, got %v", failed)
	}
	if len(sender.frames) != 1 {
		t.Fatalf("expected 1 delivered frame, got %d", len(sender.frames))
	}
}
