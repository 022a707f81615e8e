// Package idgen generates the two kinds of identifier the data path hands
// out: long-lived object/extent UUIDs (google/uuid) and short,
// log-friendly transfer correlation tokens (teris-io/shortid).
package idgen

import (
	"github.com/google/uuid"
	"github.com/teris-io/shortid"
)

var sid *shortid.Shortid

func init() {
	s, err := shortid.New(1, shortid.DefaultABC, 0xc0ffee)
	if err != nil {
		panic(err) // construction-time config error, never at runtime
	}
	sid = s
}

// NewUUID mints an immutable object or extent identity.
func NewUUID() uuid.UUID { return uuid.New() }

// NewXferID mints a short transfer correlation token (Xfer.ID) used for
// logging. LRS request ids are not drawn from it: the processor numbers its
// requests with a uint32 counter.
func NewXferID() string {
	id, err := sid.Generate()
	if err != nil {
		// shortid's counter-based generator only errors on clock skew
		// beyond its epoch window; fall back to a fresh random uuid
		// rather than failing the caller's transfer setup.
		return uuid.NewString()
	}
	return id
}
