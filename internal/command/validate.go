package command

import (
	"strings"
	"time"

	"moneybot/internal/core"
)

// ValidateTransaction normalizes the fields of cmd and checks them against
// refs. Category is checked first, then source, then direction, then amount.
// Only the first failure is reported. The timestamp is the arrival time of
// the message.
func ValidateTransaction(cmd AddTransaction, refs core.ReferenceSet, arrival time.Time) (core.TransactionItem, error) {
	item := core.Normalize(strings.TrimSpace(cmd.Item))
	category := core.Normalize(strings.TrimSpace(cmd.Category))
	source := core.Normalize(strings.TrimSpace(cmd.Source))

	if !refs.HasCategory(category) {
		return core.TransactionItem{}, &core.ValidationError{Field: "category", Value: category}
	}
	if !refs.HasSource(source) {
		return core.TransactionItem{}, &core.ValidationError{Field: "source", Value: source}
	}
	dir, ok := core.ParseDirection(cmd.RawDirection)
	if !ok {
		return core.TransactionItem{}, &core.ValidationError{Field: "action", Value: cmd.RawDirection}
	}
	amount := cmd.Amount
	if cmd.RawAmount != "" {
		v, err := core.ParseAmount(cmd.RawAmount)
		if err != nil {
			return core.TransactionItem{}, &core.ValidationError{Field: "amount", Value: cmd.RawAmount}
		}
		amount = v
	}

	t := core.TransactionItem{
		Timestamp: arrival,
		Item:      item,
		Category:  category,
		Source:    source,
		Amount:    amount,
		Direction: dir,
	}
	if err := t.Validate(); err != nil {
		return core.TransactionItem{}, err
	}
	return t, nil
}

// ValidateConfig resolves the kind and normalizes the name of cmd.
func ValidateConfig(cmd AddConfig) (core.ConfigItem, error) {
	kind, ok := core.ParseConfigKind(cmd.RawKind)
	if !ok {
		return core.ConfigItem{}, &core.ValidationError{Field: "type", Value: core.Normalize(cmd.RawKind)}
	}
	name := core.Normalize(strings.TrimSpace(cmd.Name))
	if name == "" {
		return core.ConfigItem{}, &core.ValidationError{Field: "name", Value: cmd.Name}
	}
	return core.ConfigItem{Name: name, Kind: kind}, nil
}
