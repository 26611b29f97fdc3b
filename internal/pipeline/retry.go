package pipeline

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/kyeongry/fastmatch-admin-sub000/internal/templatestore"
)

// MaxAttempts bounds how often one page is rendered, the first try included.
const MaxAttempts = 3

const (
	backoffBase = 500 * time.Millisecond
	backoffCap  = 8 * time.Second
)

// IsRetryable reports whether the template store failed transiently, by
// status or at the transport. Quota errors are not retried.
func IsRetryable(err error) bool {
	var transient *templatestore.TransientError
	return errors.As(err, &transient)
}

// Backoff returns the wait after failed attempt n (0-indexed): a random
// point in the upper half of a ceiling that doubles per attempt.
func Backoff(attempt int) time.Duration {
	ceiling := min(backoffBase<<min(max(attempt, 0), 8), backoffCap)
	return ceiling/2 + rand.N(ceiling/2+1)
}
