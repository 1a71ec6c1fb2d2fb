package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"sync"
	"time"

	"monetize-service/pkg/id"

	"github.com/oklog/ulid/v2"
)

// CodeGenerator generates unique transaction references and referral codes
type CodeGenerator struct {
	snowflake *id.Snowflake
	mu        sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// NewCodeGenerator creates a new code generator
func NewCodeGenerator(snowflake *id.Snowflake) *CodeGenerator {
	entropy := ulid.Monotonic(rand.Reader, 0)

	return &CodeGenerator{
		snowflake: snowflake,
		entropy:   entropy,
	}
}

// GenerateTransactionRef generates a ledger transaction reference
// Format: TXN-{SNOWFLAKE}
// Example: TXN-1234567890123456789
func (g *CodeGenerator) GenerateTransactionRef() string {
	return fmt.Sprintf("TXN-%s", g.snowflake.Generate())
}

// GenerateDistributionRef generates a revenue distribution reference
// Format: DST-{SNOWFLAKE}
func (g *CodeGenerator) GenerateDistributionRef() string {
	return fmt.Sprintf("DST-%s", g.snowflake.Generate())
}

// GenerateEventID generates a ULID for monetized events
// Format: 26 characters (sortable, timestamp-based)
// Example: 01ARZ3NDEKTSV4RRFFQ69G5FAV
func (g *CodeGenerator) GenerateEventID() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	eventID := ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
	return eventID.String()
}

// Referral codes: 6-12 uppercase letters/digits, globally unique
const (
	ReferralCodeLength = 8
	// Exclude ambiguous characters: 0, O, I, 1
	referralCodeCharset = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
)

var referralCodePattern = regexp.MustCompile(`^[A-Z0-9]{6,12}$`)

// GenerateReferralCode generates a random referral code
// Example: A7B2C9D4
func (g *CodeGenerator) GenerateReferralCode() string {
	result := make([]byte, ReferralCodeLength)

	for i := 0; i < ReferralCodeLength; i++ {
		num, _ := rand.Int(rand.Reader, big.NewInt(int64(len(referralCodeCharset))))
		result[i] = referralCodeCharset[num.Int64()]
	}

	return string(result)
}

// ValidateReferralCode checks a custom code against the allowed format
func ValidateReferralCode(code string) bool {
	return referralCodePattern.MatchString(code)
}

// NormalizeReferralCode uppercases and trims a user-supplied code
func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
