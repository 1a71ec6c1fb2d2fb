package utils

import (
	"strings"
	"testing"

	"monetize-service/pkg/id"

	"github.com/stretchr/testify/require"
)

func newTestGenerator(t *testing.T) *CodeGenerator {
	t.Helper()
	sf, err := id.NewSnowflake(1)
	require.NoError(t, err)
	return NewCodeGenerator(sf)
}

func TestGenerateTransactionRef(t *testing.T) {
	t.Parallel()
	g := newTestGenerator(t)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ref := g.GenerateTransactionRef()
		require.True(t, strings.HasPrefix(ref, "TXN-"), "got %s", ref)
		require.False(t, seen[ref], "duplicate ref %s", ref)
		seen[ref] = true
	}
}

func TestGenerateDistributionRef(t *testing.T) {
	t.Parallel()
	g := newTestGenerator(t)

	ref := g.GenerateDistributionRef()
	require.True(t, strings.HasPrefix(ref, "DST-"), "got %s", ref)
}

func TestGenerateEventID(t *testing.T) {
	t.Parallel()
	g := newTestGenerator(t)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		eventID := g.GenerateEventID()
		require.Len(t, eventID, 26)
		require.False(t, seen[eventID], "duplicate event id %s", eventID)
		seen[eventID] = true
	}
}

func TestGenerateReferralCode(t *testing.T) {
	t.Parallel()
	g := newTestGenerator(t)

	for i := 0; i < 100; i++ {
		code := g.GenerateReferralCode()
		require.Len(t, code, ReferralCodeLength)
		require.True(t, ValidateReferralCode(code), "generated code %s must validate", code)

		// ambiguous characters are excluded from generation
		require.NotContains(t, code, "0")
		require.NotContains(t, code, "O")
		require.NotContains(t, code, "I")
		require.NotContains(t, code, "1")
	}
}

func TestValidateReferralCode(t *testing.T) {
	t.Parallel()

	require.True(t, ValidateReferralCode("ABC123"))
	require.True(t, ValidateReferralCode("FRIENDA7"))
	require.True(t, ValidateReferralCode("ABCDEF789012"))

	require.False(t, ValidateReferralCode("abc123"), "lowercase must be normalized first")
	require.False(t, ValidateReferralCode("SHORT"))
	require.False(t, ValidateReferralCode("WAYTOOLONGCODE"))
	require.False(t, ValidateReferralCode("HAS SPACE"))
	require.False(t, ValidateReferralCode(""))
}

func TestNormalizeReferralCode(t *testing.T) {
	t.Parallel()

	require.Equal(t, "FRIENDA7", NormalizeReferralCode("  frienda7 "))
	require.Equal(t, "ABC123", NormalizeReferralCode("abc123"))
}
