package utils

import (
	"errors"  // Sentinel errors
	"strings" // Case-insensitive address comparison

	"github.com/ethereum/go-ethereum/accounts"       // personal_sign message hashing
	"github.com/ethereum/go-ethereum/common"         // Address type
	"github.com/ethereum/go-ethereum/common/hexutil" // Hex signature decoding
	"github.com/ethereum/go-ethereum/crypto"         // Public key recovery
)

// DefaultNonce is the challenge string used when the client supplies none
const DefaultNonce = "NOP-NONCE"

// Signature verification failures
var (
	ErrSignatureInvalid  = errors.New("signature verification error") // Malformed or unrecoverable signature
	ErrSignatureMismatch = errors.New("invalid signature")            // Recovered signer differs from the claimed address
)

// RecoverSigner recovers the wallet address that produced the given
// personal_sign signature over message. The signature is the usual 65-byte
// hex string (r || s || v), with or without a 0x prefix.
func RecoverSigner(message, signature string) (common.Address, error) {
	if !strings.HasPrefix(signature, "0x") {
		signature = "0x" + signature
	}
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrSignatureInvalid
	}
	// Wallets emit v as 27/28; recovery wants 0/1
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, ErrSignatureInvalid
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyWalletSignature checks that signature over nonce was produced by the
// claimed wallet address. Addresses compare case-insensitively.
func VerifyWalletSignature(address, signature, nonce string) error {
	recovered, err := RecoverSigner(nonce, signature)
	if err != nil {
		return err
	}
	if !strings.EqualFold(recovered.Hex(), address) {
		return ErrSignatureMismatch
	}
	return nil
}
