package pipeline

import (
	"fmt"
	"strings"

	"github.com/dvloznov/statement-insights/internal/statement"
)

// candidateToTransaction maps one model-emitted object to a normalized
// Transaction. The caller has already schema-checked the shape; this layer
// parses the printed values and enforces the transaction invariants.
func candidateToTransaction(obj map[string]any, fallbackYear int) (statement.Transaction, error) {
	var tx statement.Transaction

	dateStr, err := getStringField(obj, "date")
	if err != nil {
		return tx, err
	}
	desc, err := getStringField(obj, "description")
	if err != nil {
		return tx, err
	}
	amountStr, err := getStringField(obj, "amount")
	if err != nil {
		return tx, err
	}
	typeStr, err := getStringField(obj, "type")
	if err != nil {
		return tx, err
	}

	date, err := statement.ParseDate(dateStr, fallbackYear)
	if err != nil {
		return tx, fmt.Errorf("field \"date\": %w", err)
	}
	amount, err := statement.ParseAmount(amountStr)
	if err != nil {
		return tx, fmt.Errorf("field \"amount\": %w", err)
	}

	tx = statement.Transaction{
		Date:        date,
		Description: strings.TrimSpace(desc),
		Amount:      amount,
		Type:        statement.ParseType(typeStr),
	}
	tx.Normalize()
	if err := tx.Validate(); err != nil {
		return tx, err
	}
	return tx, nil
}

func getStringField(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", fmt.Errorf("missing required field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("required field %q is empty", key)
	}
	return s, nil
}

func getIntField(m map[string]any, key string) (int, error) {
	v, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("missing required field %q", key)
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("field %q has type %T, want number", key, v)
	}
	return int(f), nil
}
