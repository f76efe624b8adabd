package bidding

import (
	"strings"

	"github.com/google/uuid"
)

const applicationNumberPrefix = "APP"

// ApplicationNumberGenerator produces candidate application numbers. The
// store's unique index is the final arbiter; a generator only has to make
// collisions rare.
type ApplicationNumberGenerator interface {
	Next() string
}

// UUIDApplicationNumbers derives numbers from random UUIDs: the prefix
// followed by the low 16 hex digits of a version 4 UUID, upper-cased.
type UUIDApplicationNumbers struct{}

func (UUIDApplicationNumbers) Next() string {
	id := uuid.New()
	hex := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
	return applicationNumberPrefix + hex[len(hex)-16:]
}
