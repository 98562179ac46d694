package services

import (
	"errors"
	"fmt"
	"strings"

	"moneybot/internal/core"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
)

const failureReply = "Sorry, something went wrong while processing your message. Please try again later."

func helpText(registered bool) string {
	var b strings.Builder
	b.WriteString("Available commands:\n\n")
	b.WriteString("in|out <item> <category> <source> <amount>\n")
	b.WriteString("  e.g. out lunch Food Cash 25000\n")
	b.WriteString("summary [dd/mm/yyyy | dd/mm/yyyy - dd/mm/yyyy | yyyy | <month> [yyyy]]\n")
	b.WriteString("list category|source\n")
	b.WriteString("config category|source add <name>\n\n")
	b.WriteString("Send several entries at once by putting one per line. Use _ for spaces inside a category or source.")
	if !registered {
		b.WriteString("\n\nYou are not registered yet. Use \"register [name] [your spreadsheet link]\".")
	}
	return b.String()
}

func notRegisteredText(templateLink string) string {
	msg := "Your number is not registered. If you want to register please use \"register [name] [your spreadsheet link]\"\n\n" +
		"Please keep your name in one word and send the full spreadsheet link"
	if templateLink != "" {
		msg += " after you copied this template:\n\n" + templateLink
	} else {
		msg += "."
	}
	return msg
}

func registeredText(acc core.UserAccount, serviceAccountEmail string) string {
	msg := fmt.Sprintf("Hi %s, your spreadsheet %s is now linked.", acc.DisplayName, acc.LedgerID)
	if serviceAccountEmail != "" {
		msg += fmt.Sprintf("\n\nPlease share the spreadsheet with %s as an editor so entries can be written.", serviceAccountEmail)
	}
	return msg
}

func accessDeniedText(serviceAccountEmail string) string {
	who := "the bot account"
	if serviceAccountEmail != "" {
		who = serviceAccountEmail
	}
	return fmt.Sprintf("I cannot access your spreadsheet. Please grant editor access to %s and try again.", who)
}

func summaryText(r core.SummaryResult) string {
	return fmt.Sprintf("Summary %s\n\nIncome: %s\nExpense: %s\nBalance: %s\nTransactions: %s",
		r.Label,
		humanize.Comma(r.Income),
		humanize.Comma(r.Expense),
		humanize.Comma(r.Balance),
		humanize.Comma(int64(r.Count)))
}

func listTitle(kind core.ConfigKind) string {
	if kind == core.KindSource {
		return "Sources"
	}
	return "Categories"
}

func listUnavailableText(kind core.ConfigKind) string {
	return listTitle(kind) + " are not available right now."
}

func listText(kind core.ConfigKind, values []string) string {
	title := listTitle(kind)
	if len(values) == 0 {
		return title + ": none yet"
	}
	var b strings.Builder
	b.WriteString(title + ":")
	for _, v := range values {
		b.WriteString("\n- " + v)
	}
	return b.String()
}

// summaryErrorText turns a summary argument error into the reason shown to
// the user.
func summaryErrorText(rawArgs string, err error) string {
	var reason string
	switch {
	case errors.Is(err, core.ErrInvalidRange):
		reason = "invalid date range, use dd/mm/yyyy - dd/mm/yyyy with the end not before the start"
	case errors.Is(err, core.ErrInvalidMonth):
		reason = "invalid month, use a full English month name such as March"
	default:
		reason = "invalid summary format, use dd/mm/yyyy, a range, a year or a month"
	}
	return fmt.Sprintf("Cannot summarize %q: %s.", rawArgs, reason)
}

// lineError renders one rejected line.
func lineError(line string, err error) string {
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		return fmt.Sprintf("- Invalid %s %q at line %q.", verr.Field, verr.Value, line)
	}
	return fmt.Sprintf("- Invalid format at %q.", line)
}

// batch collects the outcome of every write line in one message.
type batch struct {
	added        int
	failed       int
	configAdded  int
	configFailed int
	errors       []string
	accessDenied bool
}

func (b *batch) empty() bool {
	return b.added == 0 && b.failed == 0 && b.configAdded == 0 && b.configFailed == 0 && len(b.errors) == 0
}

func (b *batch) text() string {
	var parts []string
	if b.added > 0 {
		parts = append(parts, english.Plural(b.added, "transaction", "transactions")+" successfully added")
	}
	if b.failed > 0 {
		parts = append(parts, english.Plural(b.failed, "transaction", "transactions")+" failed to add")
	}
	if b.configAdded > 0 {
		parts = append(parts, english.Plural(b.configAdded, "config", "configs")+" successfully added")
	}
	if b.configFailed > 0 {
		parts = append(parts, english.Plural(b.configFailed, "config", "configs")+" failed to add")
	}
	if len(b.errors) > 0 {
		var e strings.Builder
		e.WriteString(english.Plural(len(b.errors), "message error", "message errors") + ":\n")
		e.WriteString(strings.Join(b.errors, "\n"))
		e.WriteString("\n\nPlease make sure to use the correct format")
		parts = append(parts, e.String())
	}
	return strings.Join(parts, "\n\n")
}
