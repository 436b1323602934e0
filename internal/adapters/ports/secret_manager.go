package ports

import (
	"context"
)

// Secret represents a retrieved secret with metadata
type Secret struct {
	Value     string            // The secret value (e.g., gateway API key)
	Version   string            // Secret version identifier
	Metadata  map[string]string // Additional secret metadata
	CreatedAt string            // When this version was created
}

// SecretManagerAdapter defines the port for retrieving secrets from a secret
// management service. Supports multiple backends: AWS Secrets Manager,
// HashiCorp Vault, and a local filesystem store for development.
//
// The service stores two secrets: the gateway private API key and the webhook
// HMAC signing secret.
type SecretManagerAdapter interface {
	// GetSecret retrieves a secret by its path/name.
	// Path format depends on implementation:
	//   - AWS: "settlement-service/gateway/api-key" or full ARN
	//   - Vault: KV path under the configured mount
	//   - Local: file path under the configured base directory
	GetSecret(ctx context.Context, path string) (*Secret, error)

	// PutSecret creates or updates a secret and returns the new version id.
	PutSecret(ctx context.Context, path string, value string, metadata map[string]string) (version string, err error)

	// DeleteSecret permanently deletes a secret. Irreversible.
	DeleteSecret(ctx context.Context, path string) error
}
