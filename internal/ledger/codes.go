package ledger

import (
	"crypto/rand" // Cryptographic randomness for code sampling
	"math/big"    // Big integers for rand.Int
)

// codeAlphabet is the 33-symbol referral code alphabet: uppercase letters and
// digits with the visually ambiguous O, I and 0 removed
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ123456789"

// codeLength is the fixed referral code length
const codeLength = 8

// GenerateCode produces a candidate referral code: 8 characters sampled
// uniformly with replacement from the code alphabet. The result is only a
// candidate; uniqueness is enforced when the code is persisted.
func GenerateCode() string {
	max := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, codeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails if the platform source is broken
			buf[i] = codeAlphabet[0]
			continue
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf)
}
