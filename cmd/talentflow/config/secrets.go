// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"fmt"
	"os"

	"github.com/awnumar/memguard"
)

// Secret holds a credential in encrypted, locked memory. The plaintext
// only exists transiently inside Reveal.
type Secret struct {
	enclave *memguard.Enclave
}

// SecretFromEnv reads a required secret from the environment into locked
// memory and clears the variable so child processes never inherit it.
func SecretFromEnv(key string) (Secret, error) {
	v := os.Getenv(key)
	if v == "" {
		return Secret{}, fmt.Errorf("required environment variable %s is not set", key)
	}
	os.Unsetenv(key)
	return Secret{enclave: memguard.NewEnclave([]byte(v))}, nil
}

// Reveal decrypts the secret and returns a copy. Callers should keep the
// copy's lifetime short.
func (s Secret) Reveal() (string, error) {
	if s.enclave == nil {
		return "", fmt.Errorf("secret is empty")
	}
	buf, err := s.enclave.Open()
	if err != nil {
		return "", fmt.Errorf("opening secret enclave: %w", err)
	}
	defer buf.Destroy()
	return string(buf.Bytes()), nil
}
