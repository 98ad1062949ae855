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
	"strings"

	"github.com/CS-SI/osplugin/lib/utils/fail"
)

// PasswordChunkSize is the size of each encrypted block of an admin password returned by Nova
const PasswordChunkSize = 512

// ParsePrivateKey decodes a PEM encoded RSA private key (PKCS#1 or PKCS#8)
func ParsePrivateKey(pemKey string) (*rsa.PrivateKey, fail.Error) {
	block, _ := pem.Decode([]byte(strings.TrimSpace(pemKey)))
	if block == nil {
		return nil, fail.InvalidParameterError("pemKey", "no PEM data found")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fail.InvalidParameterError("pemKey", "failed to parse private key: %v", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fail.InvalidParameterError("pemKey", "private key is not an RSA key")
	}
	return key, nil
}

// DecryptChunks decrypts 'ciphertext' with PKCS#1 v1.5 by blocks of 'chunkSize' bytes and concatenates the results
func DecryptChunks(key *rsa.PrivateKey, ciphertext []byte, chunkSize int) ([]byte, fail.Error) {
	if key == nil {
		return nil, fail.InvalidParameterCannotBeNilError("key")
	}
	if chunkSize <= 0 {
		return nil, fail.InvalidParameterError("chunkSize", "must be positive")
	}

	var out []byte
	for start := 0; start < len(ciphertext); start += chunkSize {
		end := start + chunkSize
		if end > len(ciphertext) {
			end = len(ciphertext)
		}
		plain, err := rsa.DecryptPKCS1v15(rand.Reader, key, ciphertext[start:end])
		if err != nil {
			return nil, fail.ExecutionError(err, "failed to decrypt block starting at offset %d", start)
		}
		out = append(out, plain...)
	}
	return out, nil
}

// DecryptPassword decodes the base64 encrypted password and decrypts it with the PEM private key
func DecryptPassword(pemKey, encrypted string) (string, fail.Error) {
	key, xerr := ParsePrivateKey(pemKey)
	if xerr != nil {
		return "", xerr
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encrypted))
	if err != nil {
		return "", fail.InvalidParameterError("encrypted", "not base64: %v", err)
	}

	plain, xerr := DecryptChunks(key, raw, PasswordChunkSize)
	if xerr != nil {
		return "", xerr
	}
	return string(plain), nil
}
