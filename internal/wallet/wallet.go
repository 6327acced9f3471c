// Package wallet loads and validates the miner's signing keypair.
package wallet

import (
	"crypto/ed25519"

	"github.com/gagliardetto/solana-go"

	"github.com/emberlabs/embermine/pkg/errors"
)

// LoadKeypair reads a private key from a Solana keygen file, the JSON byte
// array format written by solana-keygen.
//
// Parameters:
//   - path: filesystem path to the keypair file
//
// Returns:
//   - solana.PrivateKey: the signing key
//   - error: validation error when the file is missing, malformed, or the
//     key material has the wrong shape
func LoadKeypair(path string) (solana.PrivateKey, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "load_keypair",
			"failed to read keypair file").
			WithContext("path", path)
	}

	if len(key) != ed25519.PrivateKeySize {
		return nil, errors.New(errors.ErrorTypeValidation, "load_keypair",
			"keypair has unexpected length").
			WithContext("path", path).
			WithContext("length", len(key))
	}

	if key.PublicKey().IsZero() {
		return nil, errors.New(errors.ErrorTypeValidation, "load_keypair",
			"keypair derives a zero public key").
			WithContext("path", path)
	}

	return key, nil
}
