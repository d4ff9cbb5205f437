package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/streamtab/internal/identity/service"
	"github.com/aussiebroadwan/streamtab/pkg/jwtx"
)

// InitTokenIssuer builds the access and refresh key managers.
//
// EdDSA keys are generated on startup and kept in memory only, so every
// outstanding token dies with the process and users log in again. The
// access keys are published at /.well-known/jwks.json.
//
// HS256 uses the two configured secrets, which survive restarts but cannot
// be published.
func InitTokenIssuer(cfg TokenConfig, logger *slog.Logger) (*service.TokenIssuer, error) {
	access, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{
		Algorithm: cfg.Algorithm,
		Issuer:    cfg.Issuer,
		Use:       jwtx.UseAccess,
		Secret:    []byte(cfg.AccessSecret),
		NumKeys:   cfg.NumKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("access keys: %w", err)
	}

	refresh, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{
		Algorithm: cfg.Algorithm,
		Issuer:    cfg.Issuer,
		Use:       jwtx.UseRefresh,
		Secret:    []byte(cfg.RefreshSecret),
		NumKeys:   cfg.NumKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("refresh keys: %w", err)
	}

	logger.Info("token signing keys ready",
		"algorithm", access.Algorithm(),
		"issuer", cfg.Issuer,
		"access_ttl", cfg.AccessTTL,
		"refresh_ttl", cfg.RefreshTTL,
	)

	return &service.TokenIssuer{
		Access:     access,
		Refresh:    refresh,
		Issuer:     cfg.Issuer,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	}, nil
}
