package access

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gorm.io/datatypes"
)

// Right is an atomic permission token on a resource.
type Right string

// The closed set of rights understood by the catalog.
const (
	RightRead   Right = "read"
	RightWrite  Right = "write"
	RightDelete Right = "delete"
)

// Valid reports whether the right belongs to the known enumeration.
func (r Right) Valid() bool {
	switch r {
	case RightRead, RightWrite, RightDelete:
		return true
	}
	return false
}

// RightSet is a deduplicated collection of rights. The zero value is usable.
type RightSet map[Right]struct{}

// NewRightSet builds a set from the given rights.
func NewRightSet(rights ...Right) RightSet {
	set := make(RightSet, len(rights))
	for _, right := range rights {
		set[right] = struct{}{}
	}
	return set
}

// ParseRights normalises raw right names into a set, rejecting unknown values.
func ParseRights(values []string) (RightSet, error) {
	set := make(RightSet, len(values))
	for _, value := range values {
		name := Right(strings.ToLower(strings.TrimSpace(value)))
		if name == "" {
			continue
		}
		if !name.Valid() {
			return nil, fmt.Errorf("%w %q", ErrUnknownRight, name)
		}
		set[name] = struct{}{}
	}
	return set, nil
}

// Contains reports membership of a single right.
func (s RightSet) Contains(right Right) bool {
	_, ok := s[right]
	return ok
}

// ContainsAll reports whether every right in required is present.
func (s RightSet) ContainsAll(required RightSet) bool {
	for right := range required {
		if _, ok := s[right]; !ok {
			return false
		}
	}
	return true
}

// Union returns a new set holding the rights of both operands.
func (s RightSet) Union(other RightSet) RightSet {
	merged := make(RightSet, len(s)+len(other))
	for right := range s {
		merged[right] = struct{}{}
	}
	for right := range other {
		merged[right] = struct{}{}
	}
	return merged
}

// Equal reports whether both sets hold exactly the same rights.
func (s RightSet) Equal(other RightSet) bool {
	return len(s) == len(other) && s.ContainsAll(other)
}

// Slice returns the rights in deterministic order.
func (s RightSet) Slice() []Right {
	out := make([]Right, 0, len(s))
	for right := range s {
		out = append(out, right)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the rights as sorted plain strings.
func (s RightSet) Strings() []string {
	rights := s.Slice()
	out := make([]string, len(rights))
	for i, right := range rights {
		out[i] = string(right)
	}
	return out
}

// marshalRights encodes a set as the JSON array stored on the grant row.
func marshalRights(set RightSet) (datatypes.JSON, error) {
	raw, err := json.Marshal(set.Strings())
	if err != nil {
		return nil, fmt.Errorf("access: marshal rights: %w", err)
	}
	return datatypes.JSON(raw), nil
}

// unmarshalRights decodes the stored JSON array back into a set.
func unmarshalRights(raw datatypes.JSON) (RightSet, error) {
	if len(raw) == 0 {
		return RightSet{}, nil
	}

	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("access: unmarshal rights: %w", err)
	}

	set := make(RightSet, len(values))
	for _, value := range values {
		set[Right(value)] = struct{}{}
	}
	return set, nil
}
