package registration

import (
	"context"
	"errors"
	"testing"

	"moneybot/internal/command"
	"moneybot/internal/core"
	ports "moneybot/internal/sheets"
	"moneybot/internal/sheets/memory"
)

func TestExtractLedgerID(t *testing.T) {
	tests := []struct {
		name    string
		link    string
		want    string
		wantErr bool
	}{
		{name: "edit link", link: "https://docs.example.com/d/AbC123/edit", want: "AbC123"},
		{name: "trailing slash", link: "https://docs.google.com/spreadsheets/d/1x-Y_z/", want: "1x-Y_z"},
		{name: "no trailing path", link: "https://docs.google.com/spreadsheets/d/XYZ", want: "XYZ"},
		{name: "query string", link: "https://docs.google.com/spreadsheets/d/Q1?usp=sharing", want: "Q1"},
		{name: "missing segment", link: "https://docs.example.com/spreadsheets/AbC123", wantErr: true},
		{name: "empty id", link: "https://docs.example.com/d//edit", wantErr: true},
		{name: "not a link", link: "hello", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractLedgerID(tt.link)
			if tt.wantErr {
				if !errors.Is(err, core.ErrInvalidLink) {
					t.Fatalf("expected ErrInvalidLink, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("ExtractLedgerID(%q) = %q, %v; want %q", tt.link, got, err, tt.want)
			}
		})
	}
}

func TestFlowRegister(t *testing.T) {
	ctx := context.Background()
	store := memory.New(nil, nil)
	flow := NewFlow(store, "admin", nil)

	acc, err := flow.Register(ctx, "62811", command.Register{Name: "Alice", Link: "https://docs.example.com/d/AbC123/edit"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	want := core.UserAccount{ExternalID: "62811", DisplayName: "Alice", LedgerID: "AbC123"}
	if acc != want {
		t.Fatalf("got %+v, want %+v", acc, want)
	}

	// Duplicates are appended, not rejected.
	if _, err := flow.Register(ctx, "62811", command.Register{Name: "Alice", Link: "https://x/d/Other/edit"}); err != nil {
		t.Fatalf("second register: %v", err)
	}
	ids, _ := store.ReadColumn(ctx, "admin", ports.ColumnLedgerIDs)
	if len(ids) != 3 || ids[1] != "AbC123" || ids[2] != "Other" {
		t.Fatalf("registry ledger ids = %v", ids)
	}
}

func TestFlowRegisterInvalidLinkWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := memory.New(nil, nil)
	flow := NewFlow(store, "admin", nil)

	_, err := flow.Register(ctx, "62811", command.Register{Name: "Alice", Link: "https://docs.example.com/"})
	if !errors.Is(err, core.ErrInvalidLink) {
		t.Fatalf("expected ErrInvalidLink, got %v", err)
	}
	users, _ := store.ReadColumn(ctx, "admin", ports.ColumnUsers)
	if len(users) != 1 {
		t.Fatalf("registry written on failure: %v", users)
	}
}

func TestFlowRegisterBackendFailure(t *testing.T) {
	store := memory.New(nil, nil)
	store.Forbid("admin")
	flow := NewFlow(store, "admin", nil)

	_, err := flow.Register(context.Background(), "1", command.Register{Name: "A", Link: "https://x/d/L/"})
	if !errors.Is(err, core.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}
