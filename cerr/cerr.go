// Package cerr collects the error taxonomy used across the simulator and
// the daemon: fatal config errors, logged-and-counted decode errors, and
// the silent, expected stale-sequence rejection.
package cerr

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

type (
	// ErrConfig is fatal at startup: missing field, bad address, unknown
	// protocol tag, negative timer/cost, neighbor referencing an unknown
	// router id.
	ErrConfig struct {
		what string
	}

	// ErrDecode is local, logged and counted: malformed bytes, protocol
	// mismatch, unknown kind, unknown source router id.
	ErrDecode struct {
		what string
	}

	// Errs is a bounded, deduplicating accumulator for per-tick or
	// per-run decode-drop counting.
	Errs struct {
		mu   sync.Mutex
		errs []error
	}
)

const maxErrs = 8

func NewErrConfig(format string, a ...any) *ErrConfig { return &ErrConfig{fmt.Sprintf(format, a...)} }
func (e *ErrConfig) Error() string                    { return "config error: " + e.what }

func NewErrDecode(format string, a ...any) *ErrDecode { return &ErrDecode{fmt.Sprintf(format, a...)} }
func (e *ErrDecode) Error() string                    { return "decode error: " + e.what }

func IsErrDecode(err error) bool {
	_, ok := err.(*ErrDecode)
	return ok
}

func IsErrConfig(err error) bool {
	_, ok := err.(*ErrConfig)
	return ok
}

// ErrStaleSequence is returned (never logged as a warning, per spec.md §7:
// "silent, expected") when an LSA's (origin, seq) is not strictly newer
// than what is already stored.
var ErrStaleSequence = errors.New("stale sequence")

// Add records err, deduplicating by message and capping at maxErrs so a
// single misbehaving neighbor cannot grow this unboundedly over a long run.
func (e *Errs) Add(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.errs {
		if existing.Error() == err.Error() {
			return
		}
	}
	if len(e.errs) < maxErrs {
		e.errs = append(e.errs, err)
	}
}

func (e *Errs) Cnt() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.errs)
}

// JoinErr returns the accumulated count and a single joined error, or
// (0, nil) if nothing was recorded.
func (e *Errs) JoinErr() (cnt int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cnt = len(e.errs)
	if cnt == 0 {
		return 0, nil
	}
	return cnt, errors.Wrapf(joinAll(e.errs), "%d distinct error(s)", cnt)
}

func joinAll(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	joined := msgs[0]
	for _, m := range msgs[1:] {
		joined += "; " + m
	}
	return errors.New(joined)
}
