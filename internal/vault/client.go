// Package vault stores exchange credentials in HashiCorp Vault with an
// in-memory cache and an environment fallback for local development.
package vault

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/vault/api"
)

// Credential is a named secret pair stored in Vault
type Credential struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
}

// Config holds Vault configuration
type Config struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// DefaultConfig returns a disabled Vault configuration. With Vault disabled
// credentials fall back to environment variables.
func DefaultConfig() Config {
	return Config{
		Enabled:    false,
		Address:    "http://localhost:8200",
		MountPath:  "secret",
		SecretPath: "hft-bot",
	}
}

// Client wraps the HashiCorp Vault client
type Client struct {
	client *api.Client
	config Config
	mu     sync.RWMutex
	cache  map[string]*Credential
}

// NewClient creates a new Vault client. With Vault disabled the client still
// works: reads fall back to environment variables, writes stay in memory.
func NewClient(cfg Config) (*Client, error) {
	c := &Client{
		config: cfg,
		cache:  make(map[string]*Credential),
	}
	if !cfg.Enabled {
		return c, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{CACert: cfg.CACert}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	c.client = client
	return c, nil
}

// StoreCredential stores a named credential in Vault
func (c *Client) StoreCredential(ctx context.Context, name string, cred Credential) error {
	if !c.config.Enabled {
		c.mu.Lock()
		c.cache[name] = &cred
		c.mu.Unlock()
		return nil
	}

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"api_key":    cred.APIKey,
			"secret_key": cred.SecretKey,
		},
	}

	if _, err := c.client.Logical().WriteWithContext(ctx, c.secretPath(name), secretData); err != nil {
		return fmt.Errorf("failed to store credential in vault: %w", err)
	}

	c.mu.Lock()
	c.cache[name] = &cred
	c.mu.Unlock()
	return nil
}

// GetCredential retrieves a named credential. Lookup order: in-memory cache,
// Vault, then HFT_<NAME>_API_KEY / HFT_<NAME>_SECRET_KEY environment variables.
func (c *Client) GetCredential(ctx context.Context, name string) (*Credential, error) {
	c.mu.RLock()
	if cached, ok := c.cache[name]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	if c.config.Enabled {
		secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath(name))
		if err != nil {
			return nil, fmt.Errorf("failed to read credential from vault: %w", err)
		}
		if secret != nil && secret.Data != nil {
			data, ok := secret.Data["data"].(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("invalid secret format for %s", name)
			}
			cred := &Credential{
				APIKey:    getString(data, "api_key"),
				SecretKey: getString(data, "secret_key"),
			}
			c.mu.Lock()
			c.cache[name] = cred
			c.mu.Unlock()
			return cred, nil
		}
	}

	if cred := credentialFromEnv(name); cred != nil {
		c.mu.Lock()
		c.cache[name] = cred
		c.mu.Unlock()
		return cred, nil
	}

	return nil, fmt.Errorf("credential %q not found", name)
}

// DeleteCredential removes a named credential
func (c *Client) DeleteCredential(ctx context.Context, name string) error {
	c.mu.Lock()
	delete(c.cache, name)
	c.mu.Unlock()

	if !c.config.Enabled {
		return nil
	}

	if _, err := c.client.Logical().DeleteWithContext(ctx, c.metadataPath(name)); err != nil {
		return fmt.Errorf("failed to delete credential from vault: %w", err)
	}
	return nil
}

// ClearCache clears the in-memory cache
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cache = make(map[string]*Credential)
	c.mu.Unlock()
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}
	return nil
}

func (c *Client) secretPath(name string) string {
	return fmt.Sprintf("%s/data/%s/%s", c.config.MountPath, c.config.SecretPath, name)
}

func (c *Client) metadataPath(name string) string {
	return fmt.Sprintf("%s/metadata/%s/%s", c.config.MountPath, c.config.SecretPath, name)
}

func credentialFromEnv(name string) *Credential {
	upper := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	apiKey := os.Getenv("HFT_" + upper + "_API_KEY")
	secretKey := os.Getenv("HFT_" + upper + "_SECRET_KEY")
	if apiKey == "" && secretKey == "" {
		return nil
	}
	return &Credential{APIKey: apiKey, SecretKey: secretKey}
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
