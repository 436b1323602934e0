package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/stenbridge/settlement-service/internal/adapters/ports"
	"github.com/stenbridge/settlement-service/internal/adapters/secrets"
	"github.com/stenbridge/settlement-service/internal/config"
)

// initSecretManager initializes the secret backend selected by configuration.
// Supports:
//   - local: plain files under SECRETS_LOCAL_DIR (development)
//   - aws:   AWS Secrets Manager
//   - vault: HashiCorp Vault KV v2
//
// The gateway private API key and the webhook HMAC secret are resolved
// through this backend, never from the environment.
func initSecretManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) ports.SecretManagerAdapter {
	switch cfg.Secrets.Backend {
	case "aws":
		return initAWSSecretManager(ctx, cfg, logger)
	case "vault":
		return initVaultSecretManager(ctx, cfg, logger)
	default:
		return initLocalSecretManager(cfg, logger)
	}
}

func initAWSSecretManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) ports.SecretManagerAdapter {
	awsCfg := secrets.DefaultAWSSecretsManagerConfig(cfg.Secrets.AWSRegion)
	awsCfg.CacheTTL = cfg.Secrets.CacheTTL
	awsCfg.EnableCache = !cfg.Secrets.DisableCache

	sm, err := secrets.NewAWSSecretsManagerAdapter(ctx, awsCfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize AWS Secrets Manager",
			zap.Error(err),
			zap.String("region", cfg.Secrets.AWSRegion),
		)
	}

	logger.Info("AWS Secrets Manager initialized",
		zap.String("region", cfg.Secrets.AWSRegion),
		zap.Duration("cache_ttl", awsCfg.CacheTTL),
	)
	return sm
}

func initVaultSecretManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) ports.SecretManagerAdapter {
	address := os.Getenv("VAULT_ADDR")
	if address == "" {
		logger.Fatal("VAULT_ADDR environment variable is required when SECRETS_BACKEND=vault")
	}

	vaultCfg := secrets.DefaultVaultConfig(address)
	vaultCfg.Token = os.Getenv("VAULT_TOKEN")
	vaultCfg.MountPath = cfg.Secrets.VaultMount
	vaultCfg.CacheTTL = cfg.Secrets.CacheTTL
	vaultCfg.EnableCache = !cfg.Secrets.DisableCache
	if roleID := os.Getenv("VAULT_ROLE_ID"); roleID != "" {
		vaultCfg.AuthMethod = "approle"
		vaultCfg.RoleID = roleID
		vaultCfg.SecretID = os.Getenv("VAULT_SECRET_ID")
	}

	sm, err := secrets.NewVaultAdapter(ctx, vaultCfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Vault adapter",
			zap.Error(err),
			zap.String("address", address),
		)
	}

	logger.Info("Vault secret backend initialized",
		zap.String("address", address),
		zap.String("mount", vaultCfg.MountPath),
	)
	return sm
}

func initLocalSecretManager(cfg *config.Config, logger *zap.Logger) ports.SecretManagerAdapter {
	logger.Warn("Using local file secret backend - NOT for production use!",
		zap.String("dir", cfg.Secrets.LocalDir),
	)
	return secrets.NewLocalSecretManager(cfg.Secrets.LocalDir, logger)
}
