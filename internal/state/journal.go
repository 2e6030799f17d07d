package state

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const journalWriteTimeout = 2 * time.Second

type journalEntry struct {
	snapshot *TraderSnapshot
	command  *CommandRecord
}

// Journal persists snapshots and command records off the event path.
// Enqueue never blocks; entries are dropped when the queue is full.
type Journal struct {
	store    Store
	commands CommandLog
	log      *zap.Logger
	queue    chan journalEntry
	started  atomic.Bool
	dropped  atomic.Uint64
	wg       sync.WaitGroup
}

// NewJournal returns nil when store is nil; a nil Journal discards entries.
// commands may be nil to skip the audit log.
func NewJournal(store Store, commands CommandLog, queueSize int, log *zap.Logger) *Journal {
	if store == nil {
		return nil
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Journal{
		store:    store,
		commands: commands,
		log:      log,
		queue:    make(chan journalEntry, queueSize),
	}
}

func (j *Journal) Start(ctx context.Context) {
	if j == nil {
		return
	}
	if !j.started.CompareAndSwap(false, true) {
		return
	}
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.run(ctx)
	}()
}

// Wait blocks until the writer goroutine has drained and exited.
func (j *Journal) Wait() {
	if j == nil {
		return
	}
	j.wg.Wait()
}

func (j *Journal) EnqueueSnapshot(snapshot TraderSnapshot) {
	j.enqueue(journalEntry{snapshot: &snapshot})
}

func (j *Journal) EnqueueCommand(rec CommandRecord) {
	if j == nil || j.commands == nil {
		return
	}
	j.enqueue(journalEntry{command: &rec})
}

func (j *Journal) Dropped() uint64 {
	if j == nil {
		return 0
	}
	return j.dropped.Load()
}

func (j *Journal) enqueue(entry journalEntry) {
	if j == nil {
		return
	}
	select {
	case j.queue <- entry:
	default:
		if j.dropped.Add(1) == 1 {
			j.log.Warn("journal queue full")
		}
	}
}

func (j *Journal) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			j.drain()
			return
		case entry := <-j.queue:
			j.write(context.Background(), entry)
		}
	}
}

func (j *Journal) drain() {
	for {
		select {
		case entry := <-j.queue:
			j.write(context.Background(), entry)
		default:
			return
		}
	}
}

func (j *Journal) write(ctx context.Context, entry journalEntry) {
	ctx, cancel := context.WithTimeout(ctx, journalWriteTimeout)
	defer cancel()
	switch {
	case entry.snapshot != nil:
		if err := SaveTraderSnapshot(ctx, j.store, *entry.snapshot); err != nil {
			j.log.Warn("journal snapshot write failed", zap.Error(err))
		}
	case entry.command != nil:
		if err := j.commands.AppendCommand(ctx, *entry.command); err != nil {
			j.log.Warn("journal command write failed", zap.Error(err))
		}
	}
}
