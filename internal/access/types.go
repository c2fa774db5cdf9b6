// Package access implements resource-scoped access control for the catalog.
// It decouples "who may act on an entity" from the business entities
// themselves: feature services register a Resource per protected entity and
// gate operations through rights checks, never the other way around.
package access

import "errors"

// ResourceType tags the kind of business entity a resource protects. Unknown
// values are accepted structurally; the constants below cover the catalog's
// own entities.
type ResourceType = string

const (
	TypePattern ResourceType = "pattern"
	TypeTag     ResourceType = "tag"
	TypeFile    ResourceType = "file"
)

// ErrUnknownRight reports a right name outside the supported enumeration.
var ErrUnknownRight = errors.New("access: unknown right")
