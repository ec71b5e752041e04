package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const (
	secretsService = "devsettings"
	tokenAccount   = "api_token"

	// EnvAPIToken overrides the stored API token.
	EnvAPIToken = "DEVSETTINGS_API_TOKEN"
)

// SecretsFilePath is the JSON file holding the API token.
func SecretsFilePath(dataDir string) string {
	return filepath.Join(dataDir, "secrets.json")
}

// APIToken returns the bearer token for the local API, creating and storing
// a random one on first use. DEVSETTINGS_API_TOKEN takes precedence.
func APIToken(dataDir string) (string, error) {
	if tok := os.Getenv(EnvAPIToken); tok != "" {
		return tok, nil
	}
	path := SecretsFilePath(dataDir)
	if tok, err := secretGet(path, secretsService, tokenAccount); err == nil && tok != "" {
		return tok, nil
	}
	tok := uuid.New().String()
	if err := secretSet(path, secretsService, tokenAccount, tok); err != nil {
		return "", fmt.Errorf("storing API token: %w", err)
	}
	return tok, nil
}

// RotateAPIToken replaces the stored token.
func RotateAPIToken(dataDir string) (string, error) {
	tok := uuid.New().String()
	if err := secretSet(SecretsFilePath(dataDir), secretsService, tokenAccount, tok); err != nil {
		return "", fmt.Errorf("storing API token: %w", err)
	}
	return tok, nil
}

func secretGet(path, service, account string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("secrets not available: %w", err)
	}
	var secrets map[string]map[string]string
	if err := json.Unmarshal(data, &secrets); err != nil {
		return "", fmt.Errorf("parsing secrets file: %w", err)
	}
	val, ok := secrets[service][account]
	if !ok {
		return "", fmt.Errorf("account %q not found in service %q", account, service)
	}
	return val, nil
}

func secretSet(path, service, account, value string) error {
	var secrets map[string]map[string]string

	data, err := os.ReadFile(path)
	if err == nil {
		_ = json.Unmarshal(data, &secrets)
	}
	if secrets == nil {
		secrets = make(map[string]map[string]string)
	}
	if secrets[service] == nil {
		secrets[service] = make(map[string]string)
	}
	secrets[service][account] = value

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	out, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}
