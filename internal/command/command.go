// Package command turns one line of chat text into a typed command.
package command

import "moneybot/internal/core"

// Command is one classified input line.
type Command interface {
	// Type identifies the command kind in logs.
	Type() string
	command()
}

type (
	Help struct{}

	// SummaryQuery carries everything after the "summary" keyword, unparsed.
	SummaryQuery struct {
		RawArgs string
	}

	// AddTransaction holds the raw fields of a five field entry line. Fields
	// are normalized and checked by ValidateTransaction. RawAmount keeps the
	// digits as typed; Amount is zero when they do not fit an int64.
	AddTransaction struct {
		Line         string
		RawDirection string
		Item         string
		Category     string
		Source       string
		RawAmount    string
		Amount       int64
	}

	ListQuery struct {
		Kind core.ConfigKind
	}

	AddConfig struct {
		Line    string
		RawKind string
		Name    string
	}

	Register struct {
		Name string
		Link string
	}

	Unrecognized struct {
		Line string
	}
)

func (Help) Type() string           { return "help" }
func (SummaryQuery) Type() string   { return "summary" }
func (AddTransaction) Type() string { return "add_transaction" }
func (ListQuery) Type() string      { return "list" }
func (AddConfig) Type() string      { return "add_config" }
func (Register) Type() string       { return "register" }
func (Unrecognized) Type() string   { return "unrecognized" }

func (Help) command()           {}
func (SummaryQuery) command()   {}
func (AddTransaction) command() {}
func (ListQuery) command()      {}
func (AddConfig) command()      {}
func (Register) command()       {}
func (Unrecognized) command()   {}
