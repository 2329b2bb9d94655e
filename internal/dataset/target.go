package dataset

import (
	"errors"
	"fmt"
	"strings"

	"valuation/internal/types"
)

// SelectTarget splits records into the target and the remaining candidates.
// With an empty identifier the first record is the target, matching the layout
// of the warehouse sheets. Otherwise the first record whose identifier
// normalises to the same text is used.
func SelectTarget(records []types.Record, identifier string) (types.Record, []types.Record, error) {
	if len(records) == 0 {
		return types.Record{}, nil, errors.New("dataset has no records")
	}

	idx := 0
	if identifier != "" {
		idx = -1
		want := Normalize(identifier)
		for i, r := range records {
			if Normalize(r.Identifier) == want {
				idx = i
				break
			}
		}
		if idx < 0 {
			return types.Record{}, nil, fmt.Errorf("%w: %q", types.ErrTargetNotFound, identifier)
		}
	}

	rest := make([]types.Record, 0, len(records)-1)
	rest = append(rest, records[:idx]...)
	rest = append(rest, records[idx+1:]...)
	return records[idx], rest, nil
}

// Normalize produces a canonical form of an address key.
func Normalize(addr string) string {
	addr = strings.ToUpper(strings.TrimSpace(addr))
	addr = strings.ReplaceAll(addr, ",", "")
	return strings.Join(strings.Fields(addr), " ")
}
