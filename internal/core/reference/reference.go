// Package reference derives the idempotency references used across the
// settlement core. All derivations are pure: no I/O, no state.
package reference

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

const (
	paymentPrefix = "PAYMENT_"
	refundPrefix  = "REFUND_"

	// Suffixes for the discount legs emitted during settlement.
	discountSuffix       = "_DISC"
	discountEscrowSuffix = "_DISC_ESCROW"
)

var wellFormed = regexp.MustCompile(`^[A-Z0-9_]+$`)

// Payment derives the ledger reference for a payment intent.
func Payment(orderID string) string {
	return paymentPrefix + orderID
}

// Refund derives the reference for the nth refund intent on a payment.
// sequence is (count of existing refund intents) + 1 at minting time;
// the caller re-reads and re-mints on a uniqueness conflict.
func Refund(paymentIntentID string, sequence int) string {
	return fmt.Sprintf("%s%s_%d", refundPrefix, paymentIntentID, sequence)
}

// DiscountLeg derives the reference of the marketing-wallet debit emitted
// alongside a discounted payment.
func DiscountLeg(paymentRef string) string {
	return paymentRef + discountSuffix
}

// DiscountEscrowLeg derives the reference of the subsidy credit to escrow.
func DiscountEscrowLeg(paymentRef string) string {
	return paymentRef + discountEscrowSuffix
}

// SettlementLegs returns all references a settled payment may have emitted,
// in emission order.
func SettlementLegs(paymentRef string) []string {
	return []string{paymentRef, DiscountLeg(paymentRef), DiscountEscrowLeg(paymentRef)}
}

// IsWellFormed reports whether ref is an uppercase alphanumeric reference.
func IsWellFormed(ref string) bool {
	return wellFormed.MatchString(ref)
}

// IdempotencyKey derives a generic exactly-once key from its parts:
// hex(sha256(parts joined by "|")) truncated to 32 characters.
func IdempotencyKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:32]
}
