package summary

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"moneybot/internal/core"
	ports "moneybot/internal/sheets"
)

// Engine aggregates the cash flow log of a ledger. Results are recomputed on
// every call.
type Engine struct {
	reader ports.TransactionReader
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Engine)

// WithLocation sets the zone used for "today" and for ledger timestamps.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewEngine(reader ports.TransactionReader, opts ...Option) *Engine {
	e := &Engine{reader: reader, loc: time.UTC, now: time.Now, logger: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Compute parses rawArgs and sums every transaction of ledgerID inside the
// resulting window. Argument errors are returned before the ledger is read.
func (e *Engine) Compute(ctx context.Context, rawArgs, ledgerID string) (core.SummaryResult, error) {
	w, err := ParseWindow(rawArgs, e.now().In(e.loc))
	if err != nil {
		return core.SummaryResult{}, err
	}

	rows, err := e.reader.ReadTransactionRows(ctx, ledgerID)
	if err != nil {
		return core.SummaryResult{}, fmt.Errorf("read transactions: %w", err)
	}

	res := core.SummaryResult{Label: w.Label}
	for _, row := range rows {
		for _, t := range core.DecodeTransactionRow(row, e.loc) {
			if w.Contains(t.Timestamp) {
				res.Add(t)
			}
		}
	}

	e.logger.DebugContext(ctx, "Summary computed",
		"ledger_id", ledgerID,
		"window", w.Label,
		"rows", len(rows),
		"count", res.Count)
	return res, nil
}
