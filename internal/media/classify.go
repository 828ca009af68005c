package media

import (
	"context"
	"errors"
	"strings"

	"github.com/twitchtv/twirp"

	"github.com/roomloop/backend/internal/apperr"
)

// classify converts an upstream LiveKit error into the apperr taxonomy. The
// server replies over twirp, so the status code is authoritative when present;
// the message fallbacks cover transport-level failures.
func classify(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.External("media server unreachable ("+op+")", err)
	}

	var te twirp.Error
	if errors.As(err, &te) {
		switch te.Code() {
		case twirp.NotFound:
			return apperr.NotFound("%s: %s", op, te.Msg())
		case twirp.FailedPrecondition, twirp.InvalidArgument:
			return &apperr.Error{Kind: apperr.KindPrecondition, Msg: op + " rejected", Err: err}
		case twirp.Unauthenticated, twirp.PermissionDenied:
			return apperr.Unauthorized("%s: %s", op, te.Msg())
		case twirp.Unavailable, twirp.DeadlineExceeded:
			return apperr.External("media server unreachable ("+op+")", err)
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "pulse") || strings.Contains(msg, "audio device"):
		// Egress workers surface audio-subsystem startup failures only in the
		// error text; there is no structured code for them.
		return apperr.External("egress audio subsystem unavailable", err)
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "timeout"):
		return apperr.External("media server unreachable ("+op+")", err)
	}
	return apperr.External(op+" failed", err)
}
