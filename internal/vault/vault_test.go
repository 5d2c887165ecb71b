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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v, err := New(testKey)
	require.NoError(t, err)

	sealed, err := v.Encrypt("customer@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, sealed.Ciphertext)
	assert.NotEmpty(t, sealed.IV)
	assert.NotEmpty(t, sealed.AuthTag)

	plain, err := v.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "customer@example.com", plain)
}

func TestNonceIsFreshPerEncryption(t *testing.T) {
	v, err := New(testKey)
	require.NoError(t, err)

	a, err := v.Encrypt("same input")
	require.NoError(t, err)
	b, err := v.Encrypt("same input")
	require.NoError(t, err)

	assert.NotEqual(t, a.IV, b.IV)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestDecryptRejectsTampering(t *testing.T) {
	v, err := New(testKey)
	require.NoError(t, err)

	sealed, err := v.Encrypt("hold the line")
	require.NoError(t, err)

	tampered := sealed
	tampered.AuthTag = sealed.IV // wrong tag
	_, err = v.Decrypt(tampered)
	assert.Error(t, err)
}

func TestDecryptWithRotatedKeyFails(t *testing.T) {
	v1, err := New(testKey)
	require.NoError(t, err)
	v2, err := New([]byte("ffffffffffffffffffffffffffffffff"))
	require.NoError(t, err)

	sealed, err := v1.Encrypt("pre-rotation data")
	require.NoError(t, err)

	_, err = v2.Decrypt(sealed)
	assert.Error(t, err)
}

func TestNewRejectsShortKey(t *testing.T) {
	_, err := New([]byte("short"))
	assert.Error(t, err)
}

func TestNewUsesFirst32Bytes(t *testing.T) {
	long := append([]byte{}, testKey...)
	long = append(long, []byte("extra-bytes-beyond-32")...)

	v1, err := New(testKey)
	require.NoError(t, err)
	v2, err := New(long)
	require.NoError(t, err)

	sealed, err := v1.Encrypt("shared key material")
	require.NoError(t, err)
	plain, err := v2.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "shared key material", plain)
}

func TestSelfTest(t *testing.T) {
	v, err := New(testKey)
	require.NoError(t, err)
	assert.True(t, v.SelfTest())
}

func TestCheckReturnsDuration(t *testing.T) {
	v, err := New(testKey)
	require.NoError(t, err)

	d, err := v.Check()
	require.NoError(t, err)
	assert.Greater(t, d.Nanoseconds(), int64(0))
}

func TestCheckErrorIsCritical(t *testing.T) {
	// Corrupt the key after construction to force a failure path.
	v, err := New(testKey)
	require.NoError(t, err)
	v.key = v.key[:15] // not a valid AES key length

	_, err = v.Check()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCritical))
}
