package warden

import (
	"errors"
	"fmt"
	"strconv"
)

var ErrInvalidSnowflake = errors.New("invalid snowflake")

// ParseID converts a discord snowflake string into the int64 stored in the
// database.
func ParseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSnowflake, id)
	}
	return n, nil
}

func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
