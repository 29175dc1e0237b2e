// Package storage holds the row encoding shared by the scene collection
// stores in its subpackages.
package storage

import (
	"encoding/json"
	"fmt"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
)

// EncodeSettings renders a settings bag for a TEXT or JSONB column.
func EncodeSettings(settings map[string]any) ([]byte, error) {
	if settings == nil {
		settings = map[string]any{}
	}
	b, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	return b, nil
}

// DecodeSettings parses a settings column. Numbers decode as float64.
func DecodeSettings(b []byte) (map[string]any, error) {
	settings := map[string]any{}
	if len(b) == 0 {
		return settings, nil
	}
	if err := json.Unmarshal(b, &settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return settings, nil
}

// TxFailed marks err as a failed store transaction.
func TxFailed(op string, err error) error {
	return apperr.Wrap(apperr.StoreTransactionFailed, op, err)
}
