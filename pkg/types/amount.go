package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a price as handed over by the marketplace API. The API is not
// consistent about quoting, so both "10.00" and 10 decode; the original text
// is preserved on re-encode.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*a = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		*a = Amount(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = Amount(n.String())
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if a == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(a))
}

// Decimal parses the amount; unparseable or empty values count as zero.
func (a Amount) Decimal() decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(string(a)))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Valid reports whether the amount parses as a number.
func (a Amount) Valid() bool {
	_, err := decimal.NewFromString(strings.TrimSpace(string(a)))
	return err == nil
}

// AmountFromDecimal renders d with two fixed decimals.
func AmountFromDecimal(d decimal.Decimal) Amount {
	return Amount(d.StringFixed(2))
}

// FormatMoney renders a decimal the way totals are displayed: two fixed decimals.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}
