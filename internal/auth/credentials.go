package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TokenEnv overrides stored credentials when set.
const TokenEnv = "POPUPSTUDIO_TOKEN"

// ServerCredential is a token issued by one popup-studio server.
type ServerCredential struct {
	Token     string    `json:"token"`
	Username  string    `json:"username,omitempty"`
	Role      Role      `json:"role,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the credential is past its expiry at now.
func (c ServerCredential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Credentials holds the CLI's stored tokens keyed by server URL.
type Credentials struct {
	Servers map[string]ServerCredential `json:"servers,omitempty"`
}

// CredentialPath returns the path to the credentials file (~/.popupstudio/credentials.json).
func CredentialPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".popupstudio", "credentials.json"), nil
}

// LoadCredentials reads the credentials file.
// Returns empty credentials if the file doesn't exist.
func LoadCredentials() (*Credentials, error) {
	path, err := CredentialPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Credentials{Servers: map[string]ServerCredential{}}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	if creds.Servers == nil {
		creds.Servers = map[string]ServerCredential{}
	}
	return &creds, nil
}

// SaveCredentials writes the credentials file with restricted permissions.
func SaveCredentials(creds *Credentials) error {
	path, err := CredentialPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling credentials: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}

// Set stores cred for server.
func (c *Credentials) Set(server string, cred ServerCredential) {
	if c.Servers == nil {
		c.Servers = map[string]ServerCredential{}
	}
	c.Servers[serverKey(server)] = cred
}

// Remove forgets server's credential, reporting whether one existed.
func (c *Credentials) Remove(server string) bool {
	key := serverKey(server)
	_, ok := c.Servers[key]
	delete(c.Servers, key)
	return ok
}

// Lookup returns the stored credential for server.
func (c *Credentials) Lookup(server string) (ServerCredential, bool) {
	cred, ok := c.Servers[serverKey(server)]
	return cred, ok
}

// TokenFor returns the token to present to server. The environment
// variable wins over stored credentials; expired tokens are not returned.
func TokenFor(server string) (string, bool) {
	if tok := os.Getenv(TokenEnv); tok != "" {
		return tok, true
	}
	creds, err := LoadCredentials()
	if err != nil {
		return "", false
	}
	cred, ok := creds.Lookup(server)
	if !ok || cred.Token == "" || cred.Expired(time.Now()) {
		return "", false
	}
	return cred.Token, true
}

func serverKey(server string) string {
	return strings.TrimRight(strings.TrimSpace(server), "/")
}
