package core

import (
	"testing"
	"time"
)

func TestDecodeTransactionRow(t *testing.T) {
	header := []string{"Date", "Item", "Category", "Source", "Amount", "", "Date", "Item", "Category", "Source", "Amount"}
	if got := DecodeTransactionRow(header, time.UTC); len(got) != 0 {
		t.Fatalf("header decoded into %v", got)
	}

	outOnly := []string{"01-15-2024 08:00:00", "Lunch", "Food", "Cash", "25000"}
	got := DecodeTransactionRow(outOnly, time.UTC)
	if len(got) != 1 || got[0].Direction != Out || got[0].Amount != 25000 || got[0].Item != "Lunch" {
		t.Fatalf("unexpected out decode %+v", got)
	}

	inOnly := []string{"", "", "", "", "", "", "01-20-2024 09:00:00", "Salary", "Work", "Bank", "100,000"}
	got = DecodeTransactionRow(inOnly, time.UTC)
	if len(got) != 1 || got[0].Direction != In || got[0].Amount != 100000 || got[0].Source != "Bank" {
		t.Fatalf("unexpected in decode %+v", got)
	}

	both := []string{"01-15-2024 08:00:00", "Lunch", "Food", "Cash", "25000", "", "01-20-2024 09:00:00", "Salary", "Work", "Bank", "100000"}
	got = DecodeTransactionRow(both, time.UTC)
	if len(got) != 2 || got[0].Direction != Out || got[1].Direction != In {
		t.Fatalf("expected out then in, got %+v", got)
	}
}

func TestDecodeTransactionRowSkipsBadCells(t *testing.T) {
	rows := [][]string{
		{"not a date", "Lunch", "Food", "Cash", "100"},
		{"01-15-2024 08:00:00", "Lunch", "Food", "Cash", "abc"},
		{"01-15-2024 08:00:00", "Lunch", "Food", "Cash", ""},
		{},
	}
	for i, r := range rows {
		if got := DecodeTransactionRow(r, time.UTC); len(got) != 0 {
			t.Fatalf("row %d: expected nothing, got %+v", i, got)
		}
	}
	got := DecodeTransactionRow([]string{"01-15-2024 08:00:00", "Lunch", "Food", "Cash", "2500000.0"}, time.UTC)
	if len(got) != 1 || got[0].Amount != 2500000 {
		t.Fatalf("float cell: %+v", got)
	}
}

func TestSummaryResultAdd(t *testing.T) {
	var r SummaryResult
	r.Add(TransactionItem{Amount: 100000, Direction: In})
	r.Add(TransactionItem{Amount: 40000, Direction: Out})
	if r.Income != 100000 || r.Expense != 40000 || r.Balance != 60000 || r.Count != 2 {
		t.Fatalf("unexpected result %+v", r)
	}
}
