package exporter

import (
	"strconv"

	"stockpipe/pkg/contracts/domain"
)

// formatCell renders a cell for text mirrors. Null renders as the empty string.
func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case domain.Date:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

// mirrorValue converts a cell into a driver-friendly value. Dates become
// ISO strings and booleans become 0/1 when asInt is set.
func mirrorValue(v any, asInt bool) any {
	switch x := v.(type) {
	case domain.Date:
		return x.String()
	case bool:
		if !asInt {
			return x
		}
		if x {
			return int64(1)
		}
		return int64(0)
	}
	return v
}
