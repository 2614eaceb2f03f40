// ABOUTME: Ledger id generation backed by ULIDs with crypto/rand entropy.
// ABOUTME: Ids read as <type>_<ULID> and sort by creation time within a type.
package core

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewOperationID returns a fresh ledger id for the given operation type.
func NewOperationID(t OperationType, now time.Time) string {
	return string(t) + "_" + ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}
