// ABOUTME: Shared helpers for apperr tests.
// ABOUTME: Provides a logger that writes into a caller-owned buffer.

package apperr

import (
	"io"
	"log"
)

func newTestLogger(w io.Writer) *log.Logger {
	return log.New(w, "", 0)
}
