package numeric

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// ErrFormat is returned when a value cannot be converted to an integer.
var ErrFormat = errors.New("numeric format error")

// IsFormatError checks if the error is a numeric format error.
func IsFormatError(err error) bool {
	return errors.Is(err, ErrFormat)
}

// int64er is implemented by big-integer wrappers that expose a native
// conversion.
type int64er interface {
	Int64() int64
}

// rangeChecker is implemented by wrappers that can report whether their
// value fits in an int64.
type rangeChecker interface {
	IsInt64() bool
}

// Normalize converts a chain-returned numeric value into an int64.
//
// Native integers are returned as-is, values exposing an Int64 conversion
// are converted through it, and strings are parsed as decimal (a 0x prefix
// is accepted as hexadecimal).
func Normalize(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return fromUnsigned(uint64(n))
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return fromUnsigned(n)
	case json.Number:
		return parseString(string(n))
	case string:
		return parseString(n)
	case *big.Int:
		if n == nil {
			return 0, fmt.Errorf("%w: nil big integer", ErrFormat)
		}

		if !n.IsInt64() {
			return 0, fmt.Errorf("%w: %s overflows int64", ErrFormat, n)
		}

		return n.Int64(), nil
	case nil:
		return 0, fmt.Errorf("%w: nil value", ErrFormat)
	}

	if conv, ok := v.(int64er); ok {
		if rc, ok := v.(rangeChecker); ok && !rc.IsInt64() {
			return 0, fmt.Errorf("%w: %v overflows int64", ErrFormat, v)
		}

		return conv.Int64(), nil
	}

	return 0, fmt.Errorf("%w: unsupported type %T", ErrFormat, v)
}

func fromUnsigned(n uint64) (int64, error) {
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d overflows int64", ErrFormat, n)
	}

	return int64(n), nil
}

func parseString(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)

	if hex, ok := strings.CutPrefix(trimmed, "0x"); ok {
		n, err := strconv.ParseInt(hex, 16, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrFormat, s)
		}

		return n, nil
	}

	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrFormat, s)
	}

	return n, nil
}
