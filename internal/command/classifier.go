package command

import (
	"strings"

	"moneybot/internal/core"
)

// DefaultHelpTokens are the lines answered with the help text.
var DefaultHelpTokens = []string{"?", "help", "/start", "/help", "hi", "hello"}

// matcher recognizes one grammar. fields is the line split on whitespace.
type matcher struct {
	name  string
	match func(c *Classifier, line string, fields []string, registered bool) (Command, bool)
}

// matchers is evaluated top to bottom and the first hit wins. The grammars
// overlap, so the order is part of the contract.
var matchers = []matcher{
	{name: "help", match: matchHelp},
	{name: "summary", match: matchSummary},
	{name: "add_transaction", match: matchTransaction},
	{name: "list", match: matchList},
	{name: "add_config", match: matchConfig},
	{name: "register", match: matchRegister},
}

// Classifier maps lines to commands. The zero value uses DefaultHelpTokens.
type Classifier struct {
	help map[string]struct{}
}

func NewClassifier(helpTokens []string) *Classifier {
	if len(helpTokens) == 0 {
		helpTokens = DefaultHelpTokens
	}
	help := make(map[string]struct{}, len(helpTokens))
	for _, t := range helpTokens {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			help[t] = struct{}{}
		}
	}
	return &Classifier{help: help}
}

// Order returns the matcher names in evaluation order.
func Order() []string {
	out := make([]string, len(matchers))
	for i, m := range matchers {
		out[i] = m.name
	}
	return out
}

// Classify returns exactly one command for line. It has no side effects.
func (c *Classifier) Classify(line string, registered bool) Command {
	if c == nil || c.help == nil {
		c = NewClassifier(nil)
	}
	line = strings.TrimSpace(line)
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Unrecognized{Line: line}
	}
	for _, m := range matchers {
		if cmd, ok := m.match(c, line, fields, registered); ok {
			return cmd
		}
	}
	return Unrecognized{Line: line}
}

func matchHelp(c *Classifier, line string, _ []string, _ bool) (Command, bool) {
	if _, ok := c.help[strings.ToLower(line)]; ok {
		return Help{}, true
	}
	return nil, false
}

func matchSummary(_ *Classifier, line string, fields []string, _ bool) (Command, bool) {
	if !strings.EqualFold(fields[0], "summary") {
		return nil, false
	}
	rest := strings.TrimSpace(line[len(fields[0]):])
	return SummaryQuery{RawArgs: rest}, true
}

// matchTransaction takes direction from the first field and category, source
// and amount from the last three; everything in between is the item.
func matchTransaction(_ *Classifier, line string, fields []string, _ bool) (Command, bool) {
	n := len(fields)
	if n < 5 {
		return nil, false
	}
	raw := fields[n-1]
	if !isDigits(raw) {
		return nil, false
	}
	// A digit run too long for int64 is still a transaction line; the
	// amount is rejected during validation.
	amount, _ := core.ParseAmount(raw)
	return AddTransaction{
		Line:         line,
		RawDirection: fields[0],
		Item:         strings.Join(fields[1:n-3], " "),
		Category:     fields[n-3],
		Source:       fields[n-2],
		RawAmount:    raw,
		Amount:       amount,
	}, true
}

func matchList(_ *Classifier, _ string, fields []string, _ bool) (Command, bool) {
	if len(fields) != 2 || !strings.EqualFold(fields[0], "list") {
		return nil, false
	}
	switch strings.ToLower(fields[1]) {
	case "category", "categories":
		return ListQuery{Kind: core.KindCategory}, true
	case "source", "sources":
		return ListQuery{Kind: core.KindSource}, true
	}
	return nil, false
}

func matchConfig(_ *Classifier, line string, fields []string, _ bool) (Command, bool) {
	if len(fields) < 4 || !strings.EqualFold(fields[0], "config") || !strings.EqualFold(fields[2], "add") {
		return nil, false
	}
	return AddConfig{
		Line:    line,
		RawKind: fields[1],
		Name:    strings.Join(fields[3:], " "),
	}, true
}

func matchRegister(_ *Classifier, _ string, fields []string, registered bool) (Command, bool) {
	if registered || len(fields) != 3 || !strings.EqualFold(fields[0], "register") {
		return nil, false
	}
	return Register{Name: fields[1], Link: fields[2]}, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
