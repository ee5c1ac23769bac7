package sage

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Row is one record from the ODBC source with column names preserved.
// Pervasive's driver hands back a mix of Go types depending on column
// affinity, so readers go through the coercers below instead of type
// asserting directly.
type Row map[string]any

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case time.Time:
		return t.Format("2006-01-02")
	default:
		return strings.TrimSpace(decimalFrom(v).String())
	}
}

func asDecimal(v any) decimal.Decimal {
	return decimalFrom(v)
}

func decimalFrom(v any) decimal.Decimal {
	switch t := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return t
	case float64:
		return decimal.NewFromFloat(t)
	case float32:
		return decimal.NewFromFloat32(t)
	case int64:
		return decimal.NewFromInt(t)
	case int32:
		return decimal.NewFromInt32(t)
	case int:
		return decimal.NewFromInt(int64(t))
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		if err != nil {
			return decimal.Zero
		}
		return d
	case []byte:
		d, err := decimal.NewFromString(strings.TrimSpace(string(t)))
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

func asInt64(v any) int64 {
	return decimalFrom(v).IntPart()
}

func asTime(v any) *time.Time {
	switch t := v.(type) {
	case time.Time:
		return &t
	case string:
		s := strings.TrimSpace(t)
		if len(s) >= 10 {
			if parsed, err := time.Parse("2006-01-02", s[:10]); err == nil {
				return &parsed
			}
		}
		return nil
	case []byte:
		return asTime(string(t))
	default:
		return nil
	}
}
