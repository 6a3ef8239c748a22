package id

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewTxRef generates a transaction reference like "DELIVERY-01J8ZQ...".
// The prefix identifies the order vertical and is used to route ingestion.
func NewTxRef(prefix string) string {
	u := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader)
	return fmt.Sprintf("%s-%s", strings.ToUpper(prefix), u.String())
}

// Prefix returns the vertical prefix of a tx_ref, or "" if it has none.
func Prefix(txRef string) string {
	i := strings.Index(txRef, "-")
	if i <= 0 {
		return ""
	}
	return txRef[:i]
}

// NewULID returns a bare ULID string for entity ids.
func NewULID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
