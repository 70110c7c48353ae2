package price

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

// decimalFromWire parses a JSON value that may be a bare number or a
// quoted string into a decimal.Decimal. The exchange's RPC and streaming
// payloads are inconsistent about quoting monetary fields (e.g.
// sizeCancelled arrives as either 0.0 or "0.0").
func decimalFromWire(data []byte) (decimal.Decimal, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) >= 2 && trimmed[0] == '"' && trimmed[len(trimmed)-1] == '"' {
		trimmed = trimmed[1 : len(trimmed)-1]
	}
	if len(trimmed) == 0 {
		return decimal.Decimal{}, fmt.Errorf("empty numeric wire value")
	}
	v, err := decimal.NewFromString(string(trimmed))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse %q: %w", string(data), err)
	}
	return v, nil
}
