package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"moneybot/internal/core"
	ports "moneybot/internal/sheets"
	"moneybot/internal/sheets/memory"
)

const (
	adminID  = "admin"
	ledgerID = "AbC123"
	sender   = "62811"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, opts Options) (*BotService, *memory.Store) {
	t.Helper()
	store := memory.New([]string{"Food", "Transport", "Salary"}, []string{"Cash", "Bank"})
	if err := store.AppendAccount(context.Background(), adminID, core.UserAccount{ExternalID: sender, DisplayName: "Alice", LedgerID: ledgerID}); err != nil {
		t.Fatal(err)
	}
	opts.AdminLedgerID = adminID
	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	return NewBotService(store, nil, opts), store
}

func handle(s *BotService, text string) Reply {
	return s.Handle(context.Background(), Message{Text: text, SenderID: sender + "@s.whatsapp.net", ChatID: "chat-1", Timestamp: testNow})
}

func TestHandleBatch(t *testing.T) {
	s, store := newTestService(t, Options{})

	reply := handle(s, "out lunch Food Cash 25000\nin monthly_salary salary bank 1000000\n\nout toy Games Cash 5\nwhat is this")
	if reply.ChatID != "chat-1" {
		t.Fatalf("chat id = %q", reply.ChatID)
	}
	if len(reply.Messages) != 1 {
		t.Fatalf("expected one batch message, got %q", reply.Messages)
	}
	msg := reply.Messages[0]
	for _, want := range []string{
		"2 transactions successfully added",
		"2 message errors:",
		`- Invalid category "Games" at line "out toy Games Cash 5".`,
		`- Invalid format at "what is this".`,
		"Please make sure to use the correct format",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("reply missing %q:\n%s", want, msg)
		}
	}

	rows, _ := store.ReadTransactionRows(context.Background(), ledgerID)
	var items []core.TransactionItem
	for _, r := range rows {
		items = append(items, core.DecodeTransactionRow(r, time.UTC)...)
	}
	if len(items) != 2 {
		t.Fatalf("stored %d items", len(items))
	}
	if items[1].Item != "Monthly salary" || items[1].Category != "Salary" || items[1].Source != "Bank" || items[1].Direction != core.In {
		t.Fatalf("unexpected stored item %+v", items[1])
	}
	if !items[0].Timestamp.Equal(testNow) {
		t.Fatalf("timestamp = %v, want arrival time", items[0].Timestamp)
	}
}

func TestHandleValidationOrder(t *testing.T) {
	s, _ := newTestService(t, Options{})
	msg := handle(s, "sideways toy Games Crypto 5").Messages[0]
	if !strings.Contains(msg, `Invalid category "Games"`) || strings.Contains(msg, "Invalid source") {
		t.Fatalf("expected only the category error:\n%s", msg)
	}
	msg = handle(s, "sideways toy Food Cash 5").Messages[0]
	if !strings.Contains(msg, `Invalid action "sideways"`) {
		t.Fatalf("expected direction error:\n%s", msg)
	}
}

func TestHandleSummaryAndList(t *testing.T) {
	s, _ := newTestService(t, Options{})
	handle(s, "in pay Salary Bank 100000\nout lunch Food Cash 40000")

	reply := handle(s, "summary 2024\nlist category\nsummary smarch\nhelp")
	if len(reply.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %q", reply.Messages)
	}
	for _, want := range []string{"Summary 2024", "Income: 100,000", "Expense: 40,000", "Balance: 60,000", "Transactions: 2"} {
		if !strings.Contains(reply.Messages[0], want) {
			t.Errorf("summary missing %q:\n%s", want, reply.Messages[0])
		}
	}
	if reply.Messages[1] != "Categories:\n- Food\n- Transport\n- Salary" {
		t.Errorf("list = %q", reply.Messages[1])
	}
	if !strings.Contains(reply.Messages[2], "invalid month") {
		t.Errorf("month error = %q", reply.Messages[2])
	}
	if !strings.HasPrefix(reply.Messages[3], "Available commands") {
		t.Errorf("help = %q", reply.Messages[3])
	}
}

func TestHandleConfigVisibleToLaterLines(t *testing.T) {
	s, store := newTestService(t, Options{})
	msg := handle(s, "config category add snacks\nout chips snacks Cash 5000\nconfig tag add x").Messages[0]

	for _, want := range []string{"1 transaction successfully added", "1 config successfully added", `- Invalid type "Tag"`} {
		if !strings.Contains(msg, want) {
			t.Errorf("reply missing %q:\n%s", want, msg)
		}
	}
	cats, _ := store.ReadColumn(context.Background(), ledgerID, ports.ColumnCategories)
	if cats[len(cats)-1] != "Snacks" {
		t.Fatalf("categories = %v", cats)
	}
}

func TestHandleConcurrentConfigPersistsBoth(t *testing.T) {
	s, store := newTestService(t, Options{})
	store.SetConfigWriteDelay(30 * time.Millisecond)

	var wg sync.WaitGroup
	for _, name := range []string{"Snacks", "Coffee"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			handle(s, "config Category add "+name)
		}(name)
	}
	wg.Wait()

	cats, _ := store.ReadColumn(context.Background(), ledgerID, ports.ColumnCategories)
	joined := strings.Join(cats, ",")
	if len(cats) != 6 || !strings.Contains(joined, "Snacks") || !strings.Contains(joined, "Coffee") {
		t.Fatalf("expected both additions, got %v", cats)
	}
}

func TestHandleAccessDenied(t *testing.T) {
	s, store := newTestService(t, Options{ServiceAccountEmail: "bot@project.iam.example.com"})
	store.Forbid(ledgerID)

	reply := handle(s, "out lunch Food Cash 25000")
	if len(reply.Messages) != 2 {
		t.Fatalf("expected batch and access messages, got %q", reply.Messages)
	}
	if !strings.Contains(reply.Messages[0], "1 transaction failed to add") {
		t.Errorf("batch = %q", reply.Messages[0])
	}
	if strings.Contains(reply.Messages[0], "Invalid category") {
		t.Errorf("access failure reported as validation error: %q", reply.Messages[0])
	}
	if !strings.Contains(reply.Messages[1], "grant editor access to bot@project.iam.example.com") {
		t.Errorf("access message = %q", reply.Messages[1])
	}
}

func TestHandleTimeoutIsReportedNotRetried(t *testing.T) {
	s, store := newTestService(t, Options{BackendTimeout: 10 * time.Millisecond})
	store.SetConfigWriteDelay(200 * time.Millisecond)

	msg := handle(s, "config source add wallet").Messages[0]
	if !strings.Contains(msg, "1 config failed to add") {
		t.Fatalf("reply = %q", msg)
	}
	srcs, _ := store.ReadColumn(context.Background(), ledgerID, ports.ColumnSources)
	if len(srcs) != 3 {
		t.Fatalf("timed out write landed: %v", srcs)
	}
}

func TestHandleUnregistered(t *testing.T) {
	s, store := newTestService(t, Options{TemplateLink: "https://docs.example.com/d/TEMPLATE/", ServiceAccountEmail: "bot@example.com"})
	stranger := func(text string) Reply {
		return s.Handle(context.Background(), Message{Text: text, SenderID: "999@s.whatsapp.net", ChatID: "c2"})
	}

	msg := stranger("out lunch Food Cash 1").Messages[0]
	if !strings.Contains(msg, "not registered") || !strings.Contains(msg, "https://docs.example.com/d/TEMPLATE/") {
		t.Fatalf("unexpected reply %q", msg)
	}
	if msg := stranger("help").Messages[0]; !strings.Contains(msg, "register [name]") {
		t.Fatalf("help for strangers lacks registration hint: %q", msg)
	}
	if msg := stranger("register Bob https://docs.example.com/nope").Messages[0]; !strings.Contains(msg, "Invalid spreadsheet link") {
		t.Fatalf("invalid link reply %q", msg)
	}

	msg = stranger("register Bob https://docs.example.com/d/BobLedger/edit").Messages[0]
	if !strings.Contains(msg, "Hi Bob") || !strings.Contains(msg, "bot@example.com") {
		t.Fatalf("registration reply %q", msg)
	}
	ids, _ := store.ReadColumn(context.Background(), adminID, ports.ColumnLedgerIDs)
	if ids[len(ids)-1] != "BobLedger" {
		t.Fatalf("registry = %v", ids)
	}

	msg = stranger("out lunch Food Cash 1").Messages[0]
	if !strings.Contains(msg, "1 transaction successfully added") {
		t.Fatalf("registered user not recognized: %q", msg)
	}
}

func TestHandleRegisterIgnoredOnceRegistered(t *testing.T) {
	s, store := newTestService(t, Options{})
	msg := handle(s, "register Alice https://docs.example.com/d/Other/edit").Messages[0]
	if !strings.Contains(msg, "Invalid format") {
		t.Fatalf("reply = %q", msg)
	}
	users, _ := store.ReadColumn(context.Background(), adminID, ports.ColumnUsers)
	if len(users) != 2 {
		t.Fatalf("registry changed: %v", users)
	}
}

func TestHandleEmptyMessage(t *testing.T) {
	s, _ := newTestService(t, Options{})
	if reply := handle(s, " \n\n "); len(reply.Messages) != 0 {
		t.Fatalf("expected no reply, got %q", reply.Messages)
	}
}

func TestNormalizeSenderID(t *testing.T) {
	cases := map[string]string{
		"62811@s.whatsapp.net": "62811",
		" 62811 ":              "62811",
		"telegram:42":          "telegram:42",
	}
	for in, want := range cases {
		if got := NormalizeSenderID(in); got != want {
			t.Errorf("NormalizeSenderID(%q) = %q, want %q", in, got, want)
		}
	}
}

// flakyColumns fails reference column reads of one ledger with a plain
// backend error.
type flakyColumns struct {
	*memory.Store
	ledgerID string
}

func (f *flakyColumns) ReadColumn(ctx context.Context, ledgerID string, col ports.Column) ([]string, error) {
	if ledgerID == f.ledgerID && (col == ports.ColumnCategories || col == ports.ColumnSources) {
		return nil, errors.New("backend unavailable")
	}
	return f.Store.ReadColumn(ctx, ledgerID, col)
}

func TestHandleListBackendFailureStillReplies(t *testing.T) {
	_, store := newTestService(t, Options{})
	s := NewBotService(&flakyColumns{Store: store, ledgerID: ledgerID}, nil, Options{
		AdminLedgerID: adminID,
		Now:           func() time.Time { return testNow },
	})

	reply := handle(s, "list category\nlist source")
	if len(reply.Messages) != 2 {
		t.Fatalf("expected one message per list line, got %q", reply.Messages)
	}
	if reply.Messages[0] != "Categories are not available right now." {
		t.Errorf("category list = %q", reply.Messages[0])
	}
	if reply.Messages[1] != "Sources are not available right now." {
		t.Errorf("source list = %q", reply.Messages[1])
	}
}

func TestHandleSummaryImpossibleDate(t *testing.T) {
	s, _ := newTestService(t, Options{})
	msg := handle(s, "summary 31/02/2024").Messages[0]
	if !strings.Contains(msg, `Cannot summarize "31/02/2024": invalid summary format`) {
		t.Fatalf("reply = %q", msg)
	}
}

func TestHandleAmountTooLarge(t *testing.T) {
	s, _ := newTestService(t, Options{})
	msg := handle(s, "out car Transport Bank 99999999999999999999").Messages[0]
	if !strings.Contains(msg, `- Invalid amount "99999999999999999999"`) {
		t.Fatalf("reply = %q", msg)
	}
}
