package apperr

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"strings"
)

// Kinded is implemented by errors that already know their classification,
// such as lexer and parser errors.
type Kinded interface {
	error
	ErrorKind() Kind
	ErrorOffset() int
}

var keywordKinds = []struct {
	kind     Kind
	keywords []string
}{
	{KindTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{KindPermission, []string{"permission denied", "forbidden", "unauthorized", "access denied"}},
	{KindNetwork, []string{"connection refused", "connection reset", "network", "no such host", "broken pipe"}},
	{KindResourceUnavailable, []string{"unavailable", "resource exhausted", "too many requests", "busy"}},
	{KindExternalService, []string{"service", "upstream", "bad gateway", "internal server error"}},
}

// Classify converts any error into a classified *Error. Classification
// checks the error's type first and falls back to keyword matching on its
// message; anything unrecognised becomes a deterministic Type error so that
// unknown failures are cached instead of retried forever.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	var kinded Kinded
	if errors.As(err, &kinded) {
		return &Error{Kind: kinded.ErrorKind(), Message: err.Error(), Offset: kinded.ErrorOffset(), Err: err}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(KindTimeout, -1, err)
	case errors.Is(err, context.Canceled):
		return Wrap(KindResourceUnavailable, -1, err)
	case errors.Is(err, fs.ErrPermission):
		return Wrap(KindPermission, -1, err)
	case errors.Is(err, ErrNotFound):
		return Wrap(KindResourceUnavailable, -1, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Wrap(KindTimeout, -1, err)
		}
		return Wrap(KindNetwork, -1, err)
	}

	msg := strings.ToLower(err.Error())
	for _, kk := range keywordKinds {
		for _, kw := range kk.keywords {
			if strings.Contains(msg, kw) {
				return Wrap(kk.kind, -1, err)
			}
		}
	}
	return Wrap(KindType, -1, err)
}
