package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"talentpipe-engine/internal/config"
)

// KeyringService groups the engine's secrets in the OS keychain.
const KeyringService = "talentpipe"

const serviceKeyAccount = "talentpipe:remote:service_key"

// GetServiceKey returns the data-service key from the keychain. Used
// when remote.anon_key is not set in the config file.
func GetServiceKey() (string, error) {
	key, err := keyring.Get(KeyringService, serviceKeyAccount)
	if err != nil || strings.TrimSpace(key) == "" {
		return "", errors.New("remote service key not found (set it in the keychain or in config)")
	}
	return key, nil
}

func SetServiceKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("service key is empty")
	}
	return keyring.Set(KeyringService, serviceKeyAccount, key)
}

func GetIMAPPassword(keyringAccount string) (string, error) {
	if strings.TrimSpace(keyringAccount) != "" {
		pw, err := keyring.Get(KeyringService, keyringAccount)
		if err == nil && strings.TrimSpace(pw) != "" {
			return pw, nil
		}
	}
	return "", errors.New("IMAP password not found (set it in the keychain)")
}

func SetIMAPPassword(keyringAccount string, password string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, keyringAccount, password)
}

func DeleteIMAPPassword(keyringAccount string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, keyringAccount)
}

func IMAPKeyringAccount(cfg config.Config) string {
	return fmt.Sprintf(
		"talentpipe:imap:%s@%s",
		cfg.Email.Username,
		cfg.Email.IMAPHost,
	)
}
