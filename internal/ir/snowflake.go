package ir

import (
	"bytes"
	"fmt"
	"strconv"
)

// Snowflake is an opaque gateway identifier.
//
// The zero value means the field was absent from the notification.
type Snowflake uint64

// ParseSnowflake parses a decimal identifier.
func ParseSnowflake(s string) (Snowflake, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse snowflake %q: %w", s, err)
	}
	return Snowflake(v), nil
}

// IsZero reports whether the identifier is absent.
func (s Snowflake) IsZero() bool {
	return s == 0
}

// String returns the decimal form.
func (s Snowflake) String() string {
	return strconv.FormatUint(uint64(s), 10)
}

// MarshalJSON encodes the identifier as a quoted decimal string, matching
// the gateway wire format (ids exceed the safe integer range of JS clients).
func (s Snowflake) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(s.String())), nil
}

// UnmarshalJSON accepts a quoted string, a bare number or null.
func (s *Snowflake) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = 0
		return nil
	}
	raw := string(data)
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
		if raw == "" {
			*s = 0
			return nil
		}
	}
	v, err := ParseSnowflake(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}
