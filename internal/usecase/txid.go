package usecase

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// txnPrefix namespaces ledger keys so support staff can recognize them.
const txnPrefix = "TXN-"

// NewTransactionID returns a globally-unique, time-sortable payment id, safe
// to show to users. Uniqueness is enforced by using it as the ledger key; a
// ULID's 80 random bits make regeneration collisions effectively impossible.
func NewTransactionID() string {
	return txnPrefix + ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
