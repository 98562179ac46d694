// Package registration links a chat identity to a ledger spreadsheet.
package registration

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"moneybot/internal/command"
	"moneybot/internal/core"
	ports "moneybot/internal/sheets"
)

var ledgerIDPattern = regexp.MustCompile(`/d/([A-Za-z0-9_-]+)`)

// ExtractLedgerID returns the path segment after "/d/" in a spreadsheet link.
func ExtractLedgerID(link string) (string, error) {
	m := ledgerIDPattern.FindStringSubmatch(strings.TrimSpace(link))
	if m == nil {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidLink, link)
	}
	return m[1], nil
}

// Flow appends new accounts to the admin registry. Duplicate registrations
// are appended too; lookups return the first matching row.
type Flow struct {
	writer  ports.AccountWriter
	adminID string
	logger  *slog.Logger
}

func NewFlow(writer ports.AccountWriter, adminLedgerID string, logger *slog.Logger) *Flow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{writer: writer, adminID: adminLedgerID, logger: logger}
}

func (f *Flow) Register(ctx context.Context, externalID string, cmd command.Register) (core.UserAccount, error) {
	ledgerID, err := ExtractLedgerID(cmd.Link)
	if err != nil {
		return core.UserAccount{}, err
	}
	acc := core.UserAccount{
		ExternalID:  strings.TrimSpace(externalID),
		DisplayName: strings.TrimSpace(cmd.Name),
		LedgerID:    ledgerID,
	}
	if err := f.writer.AppendAccount(ctx, f.adminID, acc); err != nil {
		return core.UserAccount{}, fmt.Errorf("append account: %w", err)
	}
	f.logger.InfoContext(ctx, "Account registered",
		"external_id", acc.ExternalID,
		"ledger_id", acc.LedgerID)
	return acc, nil
}
