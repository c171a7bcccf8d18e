// Package secrets seals credential secret bundles at rest.
//
// Sealed format: 0x01 | nonce | AES-256-GCM ciphertext, keyed by
// sha256(ENCRYPTION_KEY). Without a key bundles are stored as plain JSON,
// which is only acceptable in dev.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
)

const versionGCM byte = 0x01

var (
	ErrInvalidBlob = errors.New("invalid sealed blob")
	ErrNoKey       = errors.New("sealed blob but no encryption key configured")
)

type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the AEAD from key. An empty key yields a pass-through sealer.
func NewSealer(key string) (*Sealer, error) {
	if key == "" {
		return &Sealer{}, nil
	}
	h := sha256.Sum256([]byte(key))
	block, err := aes.NewCipher(h[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: gcm}, nil
}

// Enabled reports whether bundles are encrypted.
func (s *Sealer) Enabled() bool { return s != nil && s.aead != nil }

func (s *Sealer) Seal(values map[string]string) ([]byte, error) {
	plain, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	if !s.Enabled() {
		return plain, nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ct := s.aead.Seal(nil, nonce, plain, nil)
	out := make([]byte, 1+len(nonce)+len(ct))
	out[0] = versionGCM
	copy(out[1:1+len(nonce)], nonce)
	copy(out[1+len(nonce):], ct)
	return out, nil
}

func (s *Sealer) Open(blob []byte) (map[string]string, error) {
	if len(blob) == 0 {
		return map[string]string{}, nil
	}
	plain := blob
	if blob[0] == versionGCM {
		if !s.Enabled() {
			return nil, ErrNoKey
		}
		ns := s.aead.NonceSize()
		if len(blob) < 1+ns {
			return nil, fmt.Errorf("%w: short nonce", ErrInvalidBlob)
		}
		var err error
		plain, err = s.aead.Open(nil, blob[1:1+ns], blob[1+ns:], nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBlob, err)
		}
	} else if blob[0] != '{' {
		return nil, fmt.Errorf("%w: unsupported version %#x", ErrInvalidBlob, blob[0])
	}
	var out map[string]string
	if err := json.Unmarshal(plain, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBlob, err)
	}
	return out, nil
}
