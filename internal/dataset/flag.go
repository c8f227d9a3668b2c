package dataset

import (
	"encoding/json"
	"fmt"
)

// Flag is a tri-state indicator. The zero value is FlagMissing, used when
// the indicator cannot be computed (missing value, zero IQR).
type Flag uint8

const (
	FlagMissing Flag = iota
	FlagFalse
	FlagTrue
)

// FlagOf converts a boolean into a defined flag.
func FlagOf(b bool) Flag {
	if b {
		return FlagTrue
	}
	return FlagFalse
}

// Valid reports whether the flag carries a value.
func (f Flag) Valid() bool { return f != FlagMissing }

// IsTrue reports whether the flag is defined and set.
func (f Flag) IsTrue() bool { return f == FlagTrue }

// Float returns 1 or 0, with ok false for a missing flag.
func (f Flag) Float() (float64, bool) {
	switch f {
	case FlagTrue:
		return 1, true
	case FlagFalse:
		return 0, true
	}
	return 0, false
}

// String renders "1", "0" or "" (missing), the CSV cell form.
func (f Flag) String() string {
	switch f {
	case FlagTrue:
		return "1"
	case FlagFalse:
		return "0"
	}
	return ""
}

// MarshalJSON encodes the flag as 1, 0 or null.
func (f Flag) MarshalJSON() ([]byte, error) {
	switch f {
	case FlagTrue:
		return []byte("1"), nil
	case FlagFalse:
		return []byte("0"), nil
	}
	return []byte("null"), nil
}

// UnmarshalJSON decodes 1, 0, true, false or null.
func (f *Flag) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*f = FlagMissing
	case bool:
		*f = FlagOf(v)
	case float64:
		*f = FlagOf(v != 0)
	default:
		return fmt.Errorf("invalid flag value %s", string(data))
	}
	return nil
}
