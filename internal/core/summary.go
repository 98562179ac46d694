package core

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// SummaryResult is the aggregate of all transactions inside one window.
type SummaryResult struct {
	Label   string
	Income  int64
	Expense int64
	Balance int64
	Count   int
}

// Add folds one transaction into the result.
func (r *SummaryResult) Add(t TransactionItem) {
	if t.Direction == In {
		r.Income += t.Amount
	} else {
		r.Expense += t.Amount
	}
	r.Balance = r.Income - r.Expense
	r.Count++
}

// Column offsets of a cash flow row as read from the sheet starting at
// column B. The out block occupies B:F, column G is a spacer and the in block
// occupies H:L.
const (
	outBlock   = 0
	inBlock    = 6
	blockWidth = 5
	RowWidth   = inBlock + blockWidth
)

// DecodeTransactionRow turns one raw cash flow row into transactions.
// Direction is positional: a populated amount in the out block yields an
// outgoing transaction, in the in block an incoming one. A row may carry both
// because the two blocks are appended independently. Blocks without a
// parseable date or amount are skipped, which also drops the header row.
func DecodeTransactionRow(row []string, loc *time.Location) []TransactionItem {
	var out []TransactionItem
	if t, ok := decodeBlock(row, outBlock, Out, loc); ok {
		out = append(out, t)
	}
	if t, ok := decodeBlock(row, inBlock, In, loc); ok {
		out = append(out, t)
	}
	return out
}

func decodeBlock(row []string, start int, dir Direction, loc *time.Location) (TransactionItem, bool) {
	cell := func(i int) string {
		if start+i < len(row) {
			return strings.TrimSpace(row[start+i])
		}
		return ""
	}
	amountCell := cell(4)
	if amountCell == "" {
		return TransactionItem{}, false
	}
	amount, ok := parseCellAmount(amountCell)
	if !ok {
		return TransactionItem{}, false
	}
	ts, err := ParseTimestamp(cell(0), loc)
	if err != nil {
		return TransactionItem{}, false
	}
	return TransactionItem{
		Timestamp: ts,
		Item:      cell(1),
		Category:  cell(2),
		Source:    cell(3),
		Amount:    amount,
		Direction: dir,
	}, true
}

// parseCellAmount accepts plain integers, grouped integers ("25,000") and
// floats rendered by the spreadsheet.
func parseCellAmount(s string) (int64, bool) {
	s = strings.ReplaceAll(s, ",", "")
	if v, err := ParseAmount(s); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return int64(math.Round(f)), true
}
