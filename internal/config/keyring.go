/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// Service/keys for OS keyring.
const (
	keyringService  = "HerixWorkbench"
	keyringPassword = "archive_password"
)

// ErrNoSecret is returned when the keyring holds no archive password.
var ErrNoSecret = errors.New("no archive password stored")

// SecretStore abstracts the keyring, so we can stub in tests.
type SecretStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

var secretStore SecretStore = osKeyring{}

// osKeyring implements SecretStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

// ArchivePassword reads the PostgreSQL archive password from the keyring.
func ArchivePassword() (string, error) {
	pw, err := secretStore.Get(keyringService, keyringPassword)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNoSecret
	}
	return pw, err
}

// SetArchivePassword stores pw in the keyring. An empty pw removes the entry.
func SetArchivePassword(pw string) error {
	if pw == "" {
		err := secretStore.Delete(keyringService, keyringPassword)
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return err
	}
	return secretStore.Set(keyringService, keyringPassword, pw)
}
