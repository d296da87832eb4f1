// Package crypto implements the envelope encryption protecting secret values
// at rest: AES-256-GCM under a single process-wide master key, one fresh nonce
// per encryption.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/devaulthq/devault/internal/util"
)

const (
	// MasterKeySize is the required master key length in bytes.
	MasterKeySize = 32

	gcmNonceSize = 12
	gcmTagSize   = 16
)

// ErrIntegrity is returned when a ciphertext fails authentication. It signals
// tampering or a wrong master key and must never be conflated with "not found".
var ErrIntegrity = errors.New("ciphertext integrity check failed")

// Envelope holds one encrypted value. All three fields are lowercase hex and
// all three are required to attempt decryption.
type Envelope struct {
	Ciphertext string `json:"ciphertext"`
	Nonce      string `json:"nonce"`
	Tag        string `json:"tag"`
}

// Box performs authenticated encryption under the master key. The key lives in
// a memguard enclave and is only held in plain memory for the duration of a
// single operation. Construct once at startup and inject; never re-read the
// key from configuration per call.
type Box struct {
	key *memguard.Enclave
}

// New builds a Box from a hex-encoded 256-bit master key. An absent or
// wrong-length key is a startup error, not a per-request one.
func New(hexKey string) (*Box, error) {
	if hexKey == "" {
		return nil, errors.New("master key is not set")
	}
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errors.New("master key is not valid hex")
	}
	if len(raw) != MasterKeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", MasterKeySize, len(raw))
	}
	// NewEnclave wipes raw after sealing it.
	return &Box{key: memguard.NewEnclave(raw)}, nil
}

func (b *Box) aead() (cipher.AEAD, *memguard.LockedBuffer, error) {
	keyBuf, err := b.key.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("opening master key enclave: %w", err)
	}
	block, err := aes.NewCipher(keyBuf.Bytes())
	if err != nil {
		keyBuf.Destroy()
		return nil, nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		keyBuf.Destroy()
		return nil, nil, fmt.Errorf("creating GCM: %w", err)
	}
	return gcm, keyBuf, nil
}

// Encrypt seals plaintext with a fresh random nonce. Encrypting the same
// plaintext twice yields different nonces and different ciphertexts.
func (b *Box) Encrypt(plaintext []byte) (Envelope, error) {
	gcm, keyBuf, err := b.aead()
	if err != nil {
		return Envelope{}, err
	}
	defer keyBuf.Destroy()

	nonce, err := util.RandomBytes(gcmNonceSize)
	if err != nil {
		return Envelope{}, err
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	split := len(sealed) - gcmTagSize

	return Envelope{
		Ciphertext: hex.EncodeToString(sealed[:split]),
		Nonce:      hex.EncodeToString(nonce),
		Tag:        hex.EncodeToString(sealed[split:]),
	}, nil
}

// Decrypt opens an Envelope. Any malformed field or tag mismatch yields
// ErrIntegrity; corrupted plaintext is never returned. Error messages carry
// neither the key nor any plaintext.
func (b *Box) Decrypt(env Envelope) ([]byte, error) {
	ciphertext, err := hex.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, ErrIntegrity
	}
	nonce, err := hex.DecodeString(env.Nonce)
	if err != nil || len(nonce) != gcmNonceSize {
		return nil, ErrIntegrity
	}
	tag, err := hex.DecodeString(env.Tag)
	if err != nil || len(tag) != gcmTagSize {
		return nil, ErrIntegrity
	}

	gcm, keyBuf, err := b.aead()
	if err != nil {
		return nil, err
	}
	defer keyBuf.Destroy()

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plaintext, nil
}
