// Package session mints and validates the correlation identifiers that tie
// a dispatched task to its event timeline. Sessions are never materialized
// as stored entities; an identifier only exists on the events carrying it.
package session

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var wellFormed = regexp.MustCompile(`^session_[0-9]+_[0-9a-f]{32}$`)

// Mint returns a fresh session identifier of the form
// session_<unixMillis>_<random hex>. Uniqueness is probabilistic: the random
// component makes collisions between concurrently dispatched tasks a
// non-issue at expected volumes, with no central allocation table.
func Mint() string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("session_%d_%s", time.Now().UnixMilli(), token)
}

// IsWellFormed reports whether id looks like an identifier produced by Mint.
// Used defensively on externally supplied identifiers before querying or
// subscribing; the mint path never needs it.
func IsWellFormed(id string) bool {
	return wellFormed.MatchString(id)
}
