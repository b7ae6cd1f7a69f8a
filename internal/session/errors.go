package session

import (
	"github.com/scpid/scpid/internal/access"
	"github.com/scpid/scpid/internal/scpierr"
)

func levelExceeded(requested, limit access.Level) *scpierr.Error {
	return scpierr.NewAccessLevelExceeded(requested.String(), limit.String())
}

func insufficientAccess(required, current access.Level) *scpierr.Error {
	return scpierr.NewInsufficientAccess(required.String(), current.String())
}
