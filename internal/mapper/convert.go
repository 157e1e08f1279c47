package mapper

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrNotReady signals that a payload cannot be built yet because a
// required related row has not been synchronized in the needed direction.
// It is an outcome, not a failure: the caller skips the record and a later
// pass picks it up once the parent has crossed over.
var ErrNotReady = errors.New("required parent row not synchronized yet")

// asInt64 coerces the id shapes SQLite hands back for integer columns
func asInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case float64:
		return int64(val), true
	case []byte:
		i, err := strconv.ParseInt(strings.TrimSpace(string(val)), 10, 64)
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// asCents parses a locally stored fixed-point money value (integer cents)
func asCents(v any) (int64, bool) {
	return asInt64(v)
}

// centsToDecimal converts integer cents to the backend's native numeric
// representation
func centsToDecimal(cents int64) float64 {
	return float64(cents) / 100
}

// decimalToCents converts a backend numeric value to local integer cents
func decimalToCents(v any) (int64, bool) {
	switch val := v.(type) {
	case float64:
		return int64(math.Round(val * 100)), true
	case int64:
		return val * 100, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return int64(math.Round(f * 100)), true
	default:
		return 0, false
	}
}

// remoteIDString normalizes a backend id to its opaque string form. JSON
// decoding turns numeric ids into float64, so both shapes are accepted
func remoteIDString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, val != ""
	case float64:
		if val != math.Trunc(val) {
			return "", false
		}
		return strconv.FormatInt(int64(val), 10), true
	case int64:
		return strconv.FormatInt(val, 10), true
	default:
		return "", false
	}
}

// RemoteID extracts the backend id from a remote row
func RemoteID(row map[string]any) (string, error) {
	id, ok := remoteIDString(row["id"])
	if !ok {
		return "", fmt.Errorf("remote row carries no usable id (%v)", row["id"])
	}
	return id, nil
}
