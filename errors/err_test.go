package errors_test

import (
	"testing"

	"github.com/habiliai/lodgechat/errors"
	"github.com/stretchr/testify/require"
)

func TestKindFollowsTaxonomy(t *testing.T) {
	cases := map[error]string{
		errors.ErrThreadNotFound:                                      "not_found",
		errors.ErrEmptyMessage:                                        "invalid_state",
		errors.ErrInvalidTransition:                                   "invalid_state",
		errors.ErrNotParticipant:                                      "permission_denied",
		errors.ErrAttachmentNotOwned:                                  "permission_denied",
		errors.Wrapf(errors.ErrUploadFailed, "bucket %s", "files"):    "dependency_failure",
		errors.Wrapf(errors.ErrConflictRetryable, "direct %s", "a|b"): "conflict_retryable",
		errors.New("boom"):                                            "internal",
	}

	for err, kind := range cases {
		require.Equal(t, kind, errors.Kind(err), "error: %v", err)
	}
	require.Empty(t, errors.Kind(nil))
}

func TestFromKindRoundTrip(t *testing.T) {
	for _, sentinel := range []error{
		errors.ErrNotFound,
		errors.ErrInvalidState,
		errors.ErrPermissionDenied,
		errors.ErrDependencyFailure,
		errors.ErrConflictRetryable,
		errors.ErrInvalidParams,
	} {
		require.ErrorIs(t, errors.FromKind(errors.Kind(sentinel)), sentinel)
	}
	require.ErrorIs(t, errors.FromKind("???"), errors.ErrInternal)
}
