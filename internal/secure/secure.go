// Package secure provides the at-rest encryption behind SecureString values.
//
// Plaintext is sealed under a ChaCha20-Poly1305 key the moment a secure value
// is constructed and only recovered while rendering the protect wrapper or
// verifying a credential. The key never travels with the ciphertext.
package secure

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/statelit/statelit/internal/errors"
)

// KeySize is the required key length in bytes.
const KeySize = chacha20poly1305.KeySize

// Keeper seals and opens secure value ciphertext under a single key.
type Keeper struct {
	key []byte
}

// NewKeeper creates a Keeper from a raw 32-byte key.
func NewKeeper(key []byte) (*Keeper, error) {
	if len(key) != KeySize {
		return nil, errors.NewSecureError(
			fmt.Sprintf("secure key must be %d bytes, got %d", KeySize, len(key)), nil)
	}
	k := make([]byte, KeySize)
	copy(k, key)
	return &Keeper{key: k}, nil
}

// NewKeeperFromHex creates a Keeper from a hex-encoded key string.
func NewKeeperFromHex(encoded string) (*Keeper, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, errors.NewSecureError("secure key is not valid hex", err)
	}
	return NewKeeper(raw)
}

// NewKeeperFromFile reads a hex-encoded key from a file.
func NewKeeperFromFile(path string) (*Keeper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewSecureError(
				fmt.Sprintf("key file '%s' not found", path), errors.ErrFileNotFound)
		}
		return nil, errors.NewSecureError(
			fmt.Sprintf("failed to read key file '%s'", path), err)
	}
	return NewKeeperFromHex(string(data))
}

var (
	processOnce   sync.Once
	processKeeper *Keeper
)

// ProcessKeeper returns a Keeper sealed under a random per-process key.
// Values sealed with it cannot outlive the process; callers that need
// durable secrets must configure an explicit key.
func ProcessKeeper() *Keeper {
	processOnce.Do(func() {
		key := make([]byte, KeySize)
		if _, err := rand.Read(key); err != nil {
			// rand.Read only fails when the OS entropy source is broken;
			// there is no sane recovery at this layer.
			panic(fmt.Sprintf("secure: cannot read entropy: %v", err))
		}
		processKeeper = &Keeper{key: key}
	})
	return processKeeper
}

// Seal encrypts plaintext and returns nonce-prefixed ciphertext. A nil
// Keeper, such as the one inside a zero-value SecureString, errors instead of
// panicking.
func (k *Keeper) Seal(plain string) ([]byte, error) {
	if k == nil {
		return nil, errors.NewSecureError("no secure key configured", errors.ErrMissingSecureKey)
	}
	aead, err := chacha20poly1305.NewX(k.key)
	if err != nil {
		return nil, errors.NewSecureError("failed to initialise cipher", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.NewSecureError("failed to generate nonce", err)
	}
	return aead.Seal(nonce, nonce, []byte(plain), nil), nil
}

// Open decrypts nonce-prefixed ciphertext produced by Seal. A nil Keeper
// errors instead of panicking.
func (k *Keeper) Open(box []byte) (string, error) {
	if k == nil {
		return "", errors.NewSecureError("no secure key configured", errors.ErrMissingSecureKey)
	}
	aead, err := chacha20poly1305.NewX(k.key)
	if err != nil {
		return "", errors.NewSecureError("failed to initialise cipher", err)
	}
	if len(box) < aead.NonceSize() {
		return "", errors.NewSecureError("ciphertext too short", nil)
	}
	nonce, sealed := box[:aead.NonceSize()], box[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", errors.NewSecureError("ciphertext does not open under this key", err)
	}
	return string(plain), nil
}
