package keyring

import (
	"crypto/rand"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// KeySize is the required size of a keyring key, in bytes
	KeySize = 32

	nonceSize = 24
)

var (
	// ErrUnknownKeyTimestamp indicates the keyring has no key for the
	// provided timestamp. Decryption fails closed.
	ErrUnknownKeyTimestamp = errors.New("no key for timestamp")

	// ErrDecryptionFailed indicates the ciphertext could not be opened with
	// the selected key
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrEmptyKeyring indicates the keyring holds no keys
	ErrEmptyKeyring = errors.New("keyring has no keys")
)

// Keyring holds timestamped symmetric keys for sealing issuer secrets at
// rest. New secrets are sealed with the latest key, while older keys stay
// available to open previously sealed values.
type Keyring struct {
	keys   map[int64][KeySize]byte
	latest int64
}

// New returns a keyring over the provided timestamp-to-key mapping.
func New(keys map[int64][]byte) (*Keyring, error) {
	if len(keys) == 0 {
		return nil, ErrEmptyKeyring
	}

	kr := &Keyring{
		keys: make(map[int64][KeySize]byte),
	}
	for timestamp, key := range keys {
		if len(key) != KeySize {
			return nil, errors.Errorf("key for timestamp %d is not %d bytes", timestamp, KeySize)
		}

		var fixed [KeySize]byte
		copy(fixed[:], key)
		kr.keys[timestamp] = fixed

		if timestamp > kr.latest {
			kr.latest = timestamp
		}
	}
	return kr, nil
}

// Latest returns the timestamp of the newest key.
func (kr *Keyring) Latest() int64 {
	return kr.latest
}

// Seal encrypts the plaintext with the latest key, returning the key
// timestamp alongside the ciphertext.
func (kr *Keyring) Seal(plaintext []byte) (int64, []byte, error) {
	key := kr.keys[kr.latest]

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return 0, nil, errors.Wrap(err, "error generating nonce")
	}

	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, &key)
	return kr.latest, sealed, nil
}

// Open decrypts a ciphertext sealed with the key at the provided timestamp.
func (kr *Keyring) Open(timestamp int64, ciphertext []byte) ([]byte, error) {
	key, ok := kr.keys[timestamp]
	if !ok {
		return nil, ErrUnknownKeyTimestamp
	}

	if len(ciphertext) < nonceSize {
		return nil, ErrDecryptionFailed
	}

	var nonce [nonceSize]byte
	copy(nonce[:], ciphertext[:nonceSize])

	plaintext, ok := secretbox.Open(nil, ciphertext[nonceSize:], &nonce, &key)
	if !ok {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
