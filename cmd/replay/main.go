package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"etf-mm-bot/internal/config"
	"etf-mm-bot/internal/gateway"
	"etf-mm-bot/internal/logging"
	"etf-mm-bot/internal/state"
	"etf-mm-bot/internal/state/sqlite"
	"etf-mm-bot/internal/strategy"
)

const maxLineBytes = 1 << 20

func main() {
	configPath := flag.String("config", "", "optional config path for strategy settings")
	inputPath := flag.String("input", "-", "JSON-lines event timeline, - for stdin")
	inspectPath := flag.String("inspect", "", "print the last journaled snapshot from this sqlite file and exit")
	commandLimit := flag.Int("commands", 20, "audited commands to print with -inspect")
	flag.Parse()

	if err := config.LoadEnv(".env"); err != nil {
		fatal(err)
	}
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fatal(err)
		}
		cfg = loaded
	}
	log := logging.New(cfg.Log)
	defer func() { _ = log.Sync() }()

	if *inspectPath != "" {
		if err := inspect(context.Background(), *inspectPath, *commandLimit, os.Stdout); err != nil {
			fatal(err)
		}
		return
	}

	in := io.Reader(os.Stdin)
	if *inputPath != "-" {
		f, err := os.Open(*inputPath)
		if err != nil {
			fatal(err)
		}
		defer f.Close()
		in = f
	}
	trader, err := strategy.NewTrader(cfg.Strategy, log.Named("trader"))
	if err != nil {
		fatal(err)
	}
	if err := replay(in, os.Stdout, trader); err != nil {
		fatal(err)
	}
}

// replay feeds every timeline line to trader, printing the emitted commands
// as JSON lines followed by the final snapshot. Blank lines and lines
// starting with # are skipped.
func replay(in io.Reader, out io.Writer, trader *strategy.Trader) error {
	codec := gateway.JSONCodec{}
	enc := json.NewEncoder(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		ev, err := codec.DecodeEvent([]byte(text))
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		for _, cmd := range trader.Handle(ev) {
			w, err := gateway.CommandToWire(cmd)
			if err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
			if err := enc.Encode(w); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return enc.Encode(struct {
		Snapshot state.TraderSnapshot `json:"snapshot"`
	}{state.NewTraderSnapshot("replay", trader.Snapshot(), time.Now().UnixMilli())})
}

func inspect(ctx context.Context, path string, limit int, out io.Writer) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	store, err := sqlite.New(path)
	if err != nil {
		return err
	}
	defer store.Close()
	snapshot, ok, err := state.LoadTraderSnapshot(ctx, store)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("no journaled snapshot")
	}
	commands, err := store.Commands(ctx, snapshot.RunID, limit)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Snapshot state.TraderSnapshot  `json:"snapshot"`
		Commands []state.CommandRecord `json:"commands"`
	}{snapshot, commands})
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
