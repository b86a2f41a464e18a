package main

import (
	"errors"

	"github.com/eluent/eluent/internal/types"
)

// exitCodeFor buckets an error into spec.md §6's recommended exit codes:
// validation = 2; not-found = 3; conflict = 4; git = 5; timeout = 7.
func exitCodeFor(err error) int {
	var typed *types.Error
	if !errors.As(err, &typed) {
		return 1
	}
	switch typed.Kind {
	case types.KindInvalidStatus, types.KindInvalidType, types.KindInvalidPriority,
		types.KindContentTooLong, types.KindSelfReference, types.KindInvalidTime,
		types.KindInvalidID, types.KindInvalidMetadata, types.KindConfig:
		return 2
	case types.KindNotFound, types.KindAmbiguous, types.KindRelativeReference:
		return 3
	case types.KindCycleDetected, types.KindInvalidTransition, types.KindAlreadyClaimed, types.KindTerminalState, types.KindNotClaimed:
		return 4
	case types.KindGitError:
		return 5
	case types.KindGitTimeout:
		return 7
	default:
		return 1
	}
}
