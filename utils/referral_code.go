// utils/referral_code.go
package utils

import (
	"crypto/sha256"
	"encoding/base32"
	"regexp"
	"strings"
)

// Referral codes are derived deterministically from the user id, so no external
// state is needed to regenerate or validate one. Format: REF-XXXXXXXX where X
// is base32 (A-Z, 2-7).

const referralCodeLen = 8

var referralCodePattern = regexp.MustCompile(`^REF-[A-Z2-7]{8}$`)

// ReferralCode derives the stable referral code for a user id.
func ReferralCode(userID string) string {
	sum := sha256.Sum256([]byte("loyalty-referral:" + userID))
	enc := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:])
	return "REF-" + strings.ToUpper(enc[:referralCodeLen])
}

// ValidReferralCodeFormat checks the shape of a code without any lookup.
func ValidReferralCodeFormat(code string) bool {
	return referralCodePattern.MatchString(strings.ToUpper(strings.TrimSpace(code)))
}
