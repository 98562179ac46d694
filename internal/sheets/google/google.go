package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"moneybot/internal/core"
	ports "moneybot/internal/sheets"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client talks to one spreadsheet per ledger. The ledger id is the
// spreadsheet id; the admin registry is just another spreadsheet.
type Client struct {
	svc           *gsheet.Service
	cashflowSheet string
	configSheet   string
	accountsSheet string
}

// Ensure interface conformance
var _ ports.Ledger = (*Client)(nil)

// SheetNames overrides the tab names of the template spreadsheet.
type SheetNames struct {
	Cashflow string
	Config   string
	Accounts string
}

func (n SheetNames) withDefaults() SheetNames {
	if strings.TrimSpace(n.Cashflow) == "" {
		n.Cashflow = "Cashflow"
	}
	if strings.TrimSpace(n.Config) == "" {
		n.Config = "Config"
	}
	if strings.TrimSpace(n.Accounts) == "" {
		n.Accounts = "Accounts"
	}
	return n
}

// Credentials locates the service account key. JSON wins over File.
type Credentials struct {
	JSON string
	File string
}

// New creates a Sheets client authenticated as a service account.
func New(ctx context.Context, creds Credentials, names SheetNames) (*Client, error) {
	svc, err := newSheetsService(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, names), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, names SheetNames) *Client {
	names = names.withDefaults()
	return &Client{
		svc:           svc,
		cashflowSheet: names.Cashflow,
		configSheet:   names.Config,
		accountsSheet: names.Accounts,
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, c Credentials) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(c.JSON)
	serviceAccountFile := strings.TrimSpace(c.File)

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	creds, err := goauth.CredentialsFromJSON(ctx, credentialsJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}

	// oauth2 uses the pooled client as its base transport.
	baseCtx := context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	httpClient := oauth2.NewClient(baseCtx, creds.TokenSource)

	service, err := gsheet.NewService(ctx, goption.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully", "scope", gsheet.SpreadsheetsScope)
	return service, nil
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and conservative timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

func (c *Client) AppendTransaction(ctx context.Context, ledgerID string, t core.TransactionItem) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	// Outgoing rows live in B:F, incoming rows in H:L.
	rng := fmt.Sprintf("%s!B:F", c.cashflowSheet)
	if t.Direction == core.In {
		rng = fmt.Sprintf("%s!H:L", c.cashflowSheet)
	}
	vr := &gsheet.ValueRange{Values: [][]any{t.Row()}}
	_, err := c.svc.Spreadsheets.Values.Append(ledgerID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append %s: %w", rng, mapError(err))
	}
	return nil
}

// AppendConfig writes the item on the first row after the current end of the
// column. The read and the write are two calls; callers serialize per ledger.
func (c *Client) AppendConfig(ctx context.Context, ledgerID string, item core.ConfigItem) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	col := ports.ColumnFor(item.Kind)
	current, err := c.ReadColumn(ctx, ledgerID, col)
	if err != nil {
		return err
	}
	letter := c.columnLetter(col)
	cell := fmt.Sprintf("%s!%s%d", c.configSheet, letter, len(current)+1)
	vr := &gsheet.ValueRange{Values: [][]any{{item.Name}}}
	_, err = c.svc.Spreadsheets.Values.Update(ledgerID, cell, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", cell, mapError(err))
	}
	return nil
}

func (c *Client) AppendAccount(ctx context.Context, adminLedgerID string, a core.UserAccount) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:C", c.accountsSheet)
	vr := &gsheet.ValueRange{Values: [][]any{a.Row()}}
	_, err := c.svc.Spreadsheets.Values.Append(adminLedgerID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append %s: %w", rng, mapError(err))
	}
	return nil
}

func (c *Client) ReadColumn(ctx context.Context, ledgerID string, col ports.Column) ([]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng, err := c.columnRange(col)
	if err != nil {
		return nil, err
	}
	resp, err := c.svc.Spreadsheets.Values.Get(ledgerID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, mapError(err))
	}
	out := make([]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		if len(row) == 0 {
			out = append(out, "")
			continue
		}
		out = append(out, cellString(row[0]))
	}
	return out, nil
}

func (c *Client) ReadTransactionRows(ctx context.Context, ledgerID string) ([][]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!B:L", c.cashflowSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(ledgerID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, mapError(err))
	}
	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		rows[i] = toStrings(row)
	}
	return rows, nil
}

func (c *Client) columnRange(col ports.Column) (string, error) {
	switch col {
	case ports.ColumnCategories, ports.ColumnSources:
		l := c.columnLetter(col)
		return fmt.Sprintf("%s!%s:%s", c.configSheet, l, l), nil
	case ports.ColumnUsers:
		return fmt.Sprintf("%s!A:A", c.accountsSheet), nil
	case ports.ColumnNames:
		return fmt.Sprintf("%s!B:B", c.accountsSheet), nil
	case ports.ColumnLedgerIDs:
		return fmt.Sprintf("%s!C:C", c.accountsSheet), nil
	}
	return "", fmt.Errorf("unknown column %q", col)
}

// columnLetter is the Config tab column for sources (B) or categories (C).
func (c *Client) columnLetter(col ports.Column) string {
	if col == ports.ColumnSources {
		return "B"
	}
	return "C"
}

// mapError turns permission and not-found responses into core sentinels so
// callers can tell them apart from an empty reference list.
func mapError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s", core.ErrAccessDenied, gerr.Message)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", core.ErrLedgerNotFound, gerr.Message)
		}
	}
	return err
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = cellString(v)
	}
	return out
}

// cellString renders a cell without scientific notation for large numbers.
func cellString(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return strings.TrimSpace(x)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
