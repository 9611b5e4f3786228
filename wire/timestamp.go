package wire

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/wastore/wastore/waerr"
)

// NumberLike is implemented by 64-bit counter objects (e.g. decoded BSON
// longs) that expose their value as an integer.
type NumberLike interface {
	ToNumber() int64
}

// NormalizeTimestamp converts the heterogeneous timestamp representations
// found in persisted sync-key records to a single int64. Accepted inputs:
// decimal strings, native integer and float values, json.Number, NumberLike
// objects, and anything with a parseable String() form. Everything else is a
// ValidationError; a malformed timestamp is a hard error, never a silent
// default.
func NormalizeTimestamp(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, waerr.Validationf("timestamp is missing")
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, waerr.Validationf("timestamp %d overflows int64", x)
		}
		return int64(x), nil
	case float64:
		return int64(x), nil
	case float32:
		return int64(x), nil
	case json.Number:
		return parseTimestamp(x.String())
	case string:
		return parseTimestamp(x)
	case NumberLike:
		return x.ToNumber(), nil
	case fmt.Stringer:
		return parseTimestamp(x.String())
	default:
		return 0, waerr.Validationf("timestamp has unsupported type %T", v)
	}
}

func parseTimestamp(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &waerr.ValidationError{Msg: fmt.Sprintf("timestamp %q is not a base-10 integer", s), Cause: err}
	}
	return n, nil
}
