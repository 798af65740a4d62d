// Package auth stores Bitbucket credentials in the operating system
// keyring, one entry per configuration profile.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/99designs/keyring"
)

const serviceName = "bb-cli"

// Environment overrides, mainly for CI. When both are set no keyring
// lookup happens.
const (
	EnvUsername    = "BB_USERNAME"
	EnvAppPassword = "BB_APP_PASSWORD"
)

// ErrNotLoggedIn reports that no credentials are stored for a profile.
var ErrNotLoggedIn = errors.New("not logged in")

// Credentials is a Bitbucket username plus app password pair.
type Credentials struct {
	Username    string `json:"username"`
	AppPassword string `json:"app_password"`
}

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/bb-cli/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("bb-cli-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Save stores the credentials for a profile, replacing any previous
// entry.
func Save(profile string, creds Credentials) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	if err := ring.Set(keyring.Item{Key: profile, Data: data}); err != nil {
		return fmt.Errorf("storing credentials for profile %q: %w", profile, err)
	}
	return nil
}

// Load returns the credentials for a profile. The environment
// overrides win over the keyring; a missing entry is ErrNotLoggedIn.
func Load(profile string) (Credentials, error) {
	if user, pass := os.Getenv(EnvUsername), os.Getenv(EnvAppPassword); user != "" && pass != "" {
		return Credentials{Username: user, AppPassword: pass}, nil
	}

	ring, err := openKeyring()
	if err != nil {
		return Credentials{}, err
	}

	item, err := ring.Get(profile)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return Credentials{}, ErrNotLoggedIn
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("reading credentials for profile %q: %w", profile, err)
	}

	var creds Credentials
	if err := json.Unmarshal(item.Data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("decoding credentials for profile %q: %w", profile, err)
	}
	return creds, nil
}

// Delete removes the stored credentials of a profile. Deleting a
// profile that was never logged in is not an error.
func Delete(profile string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(profile)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("removing credentials for profile %q: %w", profile, err)
	}
	return nil
}
