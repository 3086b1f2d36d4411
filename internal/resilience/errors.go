package resilience

import (
	"errors"
	"net"
	"slices"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

type transient struct{ error }

func (t transient) Unwrap() error { return t.error }

// Transient marks err as safe to retry. The message is unchanged.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return transient{err}
}

// retryableText catches errors whose type was lost on the way up, such as
// those flattened by database/sql drivers.
var retryableText = []string{
	"connection reset by peer",
	"broken pipe",
	"i/o timeout",
	"tls handshake timeout",
	"temporary failure in name resolution",
	"server closed idle connection",
	"database is locked",
	"sqlite_busy",
}

// IsTransient reports whether opening a source again may succeed: marked
// errors, network timeouts and resets, retryable Postgres errors and a busy
// SQLite file.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var t transient
	var ne net.Error
	switch {
	case errors.As(err, &t):
	case errors.As(err, &ne) && ne.Timeout():
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNABORTED):
	case pgconn.SafeToRetry(err), pgTransient(err):
	default:
		msg := strings.ToLower(err.Error())
		return slices.ContainsFunc(retryableText, func(s string) bool { return strings.Contains(msg, s) })
	}
	return true
}

// pgTransient matches server-side conditions that clear by themselves:
// connection exceptions (class 08), shutdown or startup (57P0x), and
// serialization failures or deadlocks.
func pgTransient(err error) bool {
	var pe *pgconn.PgError
	if !errors.As(err, &pe) {
		return false
	}
	return strings.HasPrefix(pe.Code, "08") || strings.HasPrefix(pe.Code, "57P0") ||
		pe.Code == "40001" || pe.Code == "40P01"
}
