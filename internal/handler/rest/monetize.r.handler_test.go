package hrest

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	xerrors "monetize-service/pkg/xerrors"

	"github.com/stretchr/testify/require"
)

func TestRejectionFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err    error
		status int
	}{
		{xerrors.ErrViewTooShort, http.StatusUnprocessableEntity},
		{xerrors.ErrViewTooSmallShare, http.StatusUnprocessableEntity},
		{xerrors.ErrNoAdRevenue, http.StatusUnprocessableEntity},
		{xerrors.ErrAmountTooSmall, http.StatusUnprocessableEntity},
		{xerrors.ErrDuplicateEvent, http.StatusConflict},
		{xerrors.ErrCapExceeded, http.StatusUnprocessableEntity},
		{xerrors.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{xerrors.ErrSelfReferral, http.StatusUnprocessableEntity},
		{xerrors.ErrAlreadyReferred, http.StatusConflict},
		{xerrors.ErrCodeNotFound, http.StatusNotFound},
		{xerrors.ErrWalletNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		status, reason := rejectionFor(tc.err)
		require.Equal(t, tc.status, status, "error %v", tc.err)
		require.NotEmpty(t, reason)
	}

	// wrapped sentinels still map
	status, _ := rejectionFor(fmt.Errorf("daily watch cap: %w", xerrors.ErrCapExceeded))
	require.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestSubmitOutcome(t *testing.T) {
	t.Parallel()

	// a replayed impression already settled once: the retrying client gets a
	// success status so it stops, not a 409 it might treat as failure
	status, body := submitOutcome(xerrors.ErrDuplicateEvent)
	require.Equal(t, http.StatusOK, status)
	require.False(t, body.Accepted)
	require.NotEmpty(t, body.Reason)

	status, body = submitOutcome(xerrors.ErrViewTooShort)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.False(t, body.Accepted)
}
