// Package mailerr defines the error taxonomy shared by the protocol adapters
// and the connection manager. Errors carry a Kind for programmatic matching
// and a Timeout flag for deadline violations, so callers never have to inspect
// message text.
package mailerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure by what went wrong, not by which backend produced it.
type Kind string

const (
	// Connection covers transport failures: DNS, TCP, TLS, broken sessions.
	Connection Kind = "connection"
	// Authentication covers rejected credentials, OAuth2 exchange and refresh
	// failures, CSRF mismatches, and unsupported auth methods.
	Authentication Kind = "authentication"
	// Protocol covers malformed or unexpected responses on an otherwise
	// authenticated session.
	Protocol Kind = "protocol"
	// Parse covers malformed input supplied by the caller, such as a
	// non-numeric message id where a UID is required.
	Parse Kind = "parse"
	// Configuration covers accounts that fail validation and lookups of
	// unknown account ids.
	Configuration Kind = "configuration"
)

// Error is the structured error returned by adapters and the connection
// manager.
type Error struct {
	Kind      Kind
	Op        string // failing operation, e.g. "imap.connect"
	AccountID string
	Timeout   bool // a per-step deadline was exceeded
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.AccountID != "" {
		fmt.Fprintf(&b, "account %s: ", e.AccountID)
	}
	b.WriteString(string(e.Kind))
	b.WriteString(" error")
	if e.Timeout {
		b.WriteString(" (timeout)")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an *Error of the given kind for op, wrapping err (which may be nil).
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Timeout builds an *Error marking a deadline violation for op.
func Timeout(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Timeout: true, Err: err}
}

// Errorf builds an *Error whose cause is constructed from a format string.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" when the
// chain carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err's chain contains an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsTimeout reports whether err's chain contains an *Error with the Timeout
// flag set.
func IsTimeout(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Timeout
}

// IsAuthTimeout reports whether err is an authentication failure caused by a
// deadline violation. The connection manager uses this, and only this, to
// decide the one-shot REST fallback.
func IsAuthTimeout(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == Authentication && e.Timeout
}

// WithAccount returns err annotated with the account id. An *Error in the
// chain that lacks an account id gets stamped; anything else is wrapped with
// plain context.
func WithAccount(err error, accountID string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.AccountID != "" {
			return err
		}
		clone := *e
		clone.AccountID = accountID
		return &clone
	}
	return fmt.Errorf("account %s: %w", accountID, err)
}
