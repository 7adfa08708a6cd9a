package app

import (
	"crypto/sha256"

	"github.com/nwaqas/finfortress/internal/auth"
	"github.com/nwaqas/finfortress/internal/auth/mfa"
	"github.com/nwaqas/finfortress/internal/auth/providers"
	"github.com/nwaqas/finfortress/internal/auth/unlock"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// SessionServiceConfig converts AuthConfig into SessionService parameters.
func (c AuthConfig) SessionServiceConfig() auth.SessionConfig {
	ttl := c.Session.RefreshTTL
	if ttl <= 0 {
		ttl = auth.DefaultRefreshTokenTTL
	}

	length := c.Session.RefreshLength
	if length <= 0 {
		length = 48
	}

	return auth.SessionConfig{
		RefreshTokenTTL: ttl,
		RefreshLength:   length,
	}
}

// LocalProviderConfig converts AuthConfig into LocalProvider parameters.
func (c AuthConfig) LocalProviderConfig() providers.LocalConfig {
	return providers.LocalConfig{
		MinPasswordLength: c.Local.MinPasswordLength,
	}
}

// OIDCProviderConfig converts the OIDC settings into provider parameters.
func (c AuthConfig) OIDCProviderConfig() providers.OIDCConfig {
	return providers.OIDCConfig{
		Issuer:       c.OIDC.Issuer,
		ClientID:     c.OIDC.ClientID,
		ClientSecret: c.OIDC.ClientSecret,
		RedirectURL:  c.OIDC.RedirectURL,
		Scopes:       c.OIDC.Scopes,
	}
}

// SSOStateKey derives the 32-byte key sealing OIDC state tokens from the JWT
// signing secret, so no extra secret needs provisioning.
func (c AuthConfig) SSOStateKey() []byte {
	sum := sha256.Sum256([]byte(c.JWT.Secret))
	return sum[:]
}

// TOTPOptions converts the TOTP settings into mfa service options.
func (c AuthConfig) TOTPOptions() []mfa.Option {
	var opts []mfa.Option
	if c.TOTP.Issuer != "" {
		opts = append(opts, mfa.WithIssuer(c.TOTP.Issuer))
	}
	if c.TOTP.RecoveryCodeCount > 0 {
		opts = append(opts, mfa.WithRecoveryCodeCount(c.TOTP.RecoveryCodeCount))
	}
	return opts
}

// UnlockOptions converts the unlock settings into tracker options.
func (c AuthConfig) UnlockOptions() []unlock.Option {
	var opts []unlock.Option
	if c.Unlock.GrantTTL > 0 {
		opts = append(opts, unlock.WithTTL(c.Unlock.GrantTTL))
	}
	return opts
}
