// ABOUTME: Best-effort error reporting side channel for monitoring.
// ABOUTME: Reporters never return errors and swallow their own panics.
package apperr

import (
	"log"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Reporter receives terminal failures for monitoring. Implementations must
// not block the caller for long and must never panic.
type Reporter interface {
	Report(s ErrorState, context map[string]string)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(s ErrorState, context map[string]string)

func (f ReporterFunc) Report(s ErrorState, context map[string]string) { f(s, context) }

// LogReporter writes each report as a single structured log line tagged with
// a fresh incident id.
type LogReporter struct {
	Logger *log.Logger // nil means the standard logger
}

// Report implements Reporter.
func (r LogReporter) Report(s ErrorState, context map[string]string) {
	logf := log.Printf
	if r.Logger != nil {
		logf = r.Logger.Printf
	}

	keys := make([]string, 0, len(context))
	for k := range context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var extra strings.Builder
	for _, k := range keys {
		extra.WriteString(" " + k + "=" + quoteIfNeeded(context[k]))
	}

	retryCount := 0
	if s.RetryCount != nil {
		retryCount = *s.RetryCount
	}
	logf("component=apperr action=report incident_id=%s type=%s retryable=%t retry_count=%d timestamp=%d message=%q%s",
		uuid.NewString(), s.Kind, s.Retryable, retryCount, s.Timestamp, s.Message, extra.String())
}

// SafeReport delivers a report and recovers from any panic raised by the
// reporter. A nil reporter is a no-op.
func SafeReport(r Reporter, s ErrorState, context map[string]string) {
	if r == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			log.Printf("component=apperr action=report_panic err=%v", p)
		}
	}()
	r.Report(s, context)
}

func quoteIfNeeded(v string) string {
	if v == "" || strings.ContainsAny(v, " \t\"=") {
		return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	}
	return v
}
