/*
 * Copyright 2018-2023, CS Systemes d'Information, http://csgroup.eu
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package crypt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecryptChunks(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	first, err := rsa.EncryptPKCS1v15(rand.Reader, &key.PublicKey, []byte("s3cr3t-"))
	require.NoError(t, err)
	second, err := rsa.EncryptPKCS1v15(rand.Reader, &key.PublicKey, []byte("passw0rd"))
	require.NoError(t, err)

	plain, xerr := DecryptChunks(key, append(first, second...), key.Size())
	require.Nil(t, xerr)
	assert.Equal(t, "s3cr3t-passw0rd", string(plain))
}

func TestDecryptPassword(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 4096)
	require.NoError(t, err)
	pemKey := string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))

	encrypted, err := rsa.EncryptPKCS1v15(rand.Reader, &key.PublicKey, []byte("Adm1nPass"))
	require.NoError(t, err)
	require.Len(t, encrypted, PasswordChunkSize)

	password, xerr := DecryptPassword(pemKey, base64.StdEncoding.EncodeToString(encrypted))
	require.Nil(t, xerr)
	assert.Equal(t, "Adm1nPass", password)
}

func TestDecryptPasswordErrors(t *testing.T) {
	_, xerr := DecryptPassword("not a key", "abc")
	assert.NotNil(t, xerr)

	_, xerr = DecryptChunks(nil, []byte("x"), 512)
	assert.NotNil(t, xerr)
}
