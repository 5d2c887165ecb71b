/*
Copyright 2024 Phantom Vision Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"io"
	"time"

	"github.com/pkg/errors"
)

// Placeholder is substituted for a stored field that can no longer be
// decrypted (typically a key rotated without a data migration). Callers
// surface it instead of failing the whole record.
const Placeholder = "unavailable:decryption_failed"

// ErrCritical distinguishes a pre-operation health-check failure from the
// boolean startup self-test. Callers treat it as operation-aborting.
var ErrCritical = errors.New("vault: critical encryption failure")

// selfTestMarker is the fixed string round-tripped by SelfTest and Check.
const selfTestMarker = "phantom-vision-vault-check"

const (
	keySize   = 32 // AES-256
	nonceSize = 12 // 96-bit nonce, mandatory fresh per encryption
)

// Sealed is one encrypted field: ciphertext, nonce and GCM auth tag,
// each base64 encoded so they can live in separate columns.
type Sealed struct {
	Ciphertext string
	IV         string
	AuthTag    string
}

// Vault performs symmetric encryption of personally identifying fields at
// rest. The key is loaded once from process configuration; only the first
// 32 bytes are used.
type Vault struct {
	key []byte
}

func New(key []byte) (*Vault, error) {
	if len(key) < keySize {
		return nil, errors.Errorf("vault: key must be at least %d bytes, got %d", keySize, len(key))
	}
	k := make([]byte, keySize)
	copy(k, key[:keySize])
	return &Vault{key: k}, nil
}

// Encrypt seals a plaintext with AES-256-GCM under a fresh random nonce.
// A nonce is never reused with the same key.
func (v *Vault) Encrypt(plaintext string) (Sealed, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return Sealed{}, err
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return Sealed{}, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return Sealed{}, err
	}

	out := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	tagStart := len(out) - gcm.Overhead()

	return Sealed{
		Ciphertext: base64.StdEncoding.EncodeToString(out[:tagStart]),
		IV:         base64.StdEncoding.EncodeToString(nonce),
		AuthTag:    base64.StdEncoding.EncodeToString(out[tagStart:]),
	}, nil
}

// Decrypt opens a sealed field. Any tampering with ciphertext, nonce or tag
// fails authentication and returns an error.
func (v *Vault) Decrypt(s Sealed) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(s.Ciphertext)
	if err != nil {
		return "", err
	}
	nonce, err := base64.StdEncoding.DecodeString(s.IV)
	if err != nil {
		return "", err
	}
	tag, err := base64.StdEncoding.DecodeString(s.AuthTag)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return "", err
	}
	if len(nonce) != nonceSize {
		return "", errors.New("vault: invalid nonce length")
	}

	plaintext, err := gcm.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// SelfTest round-trips the fixed marker and reports success. A failing
// self-test is fatal to process startup.
func (v *Vault) SelfTest() bool {
	sealed, err := v.Encrypt(selfTestMarker)
	if err != nil {
		return false
	}
	plain, err := v.Decrypt(sealed)
	return err == nil && plain == selfTestMarker
}

// Check times a full round-trip immediately before an operation that
// depends on the vault. Unlike SelfTest it returns ErrCritical so callers
// can tell a pre-scan health failure apart from a startup failure.
func (v *Vault) Check() (time.Duration, error) {
	start := time.Now()
	sealed, err := v.Encrypt(selfTestMarker)
	if err != nil {
		return 0, errors.Wrap(ErrCritical, err.Error())
	}
	plain, err := v.Decrypt(sealed)
	if err != nil {
		return 0, errors.Wrap(ErrCritical, err.Error())
	}
	if plain != selfTestMarker {
		return 0, errors.Wrap(ErrCritical, "round-trip mismatch")
	}
	return time.Since(start), nil
}
