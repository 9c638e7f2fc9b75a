package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rankpulse/rankpulse/app/models"
	"github.com/rankpulse/rankpulse/internal/pkg/cache"
)

const (
	webhookSecretCacheKey = "billing:paddle:webhook_secret"

	// Secrets are rotatable at runtime, so the cache must stay short-lived.
	webhookSecretCacheTTL = 2 * time.Minute
)

var ErrGatewayNotConfigured = errors.New("paddle gateway is not configured or inactive")

// Gateway is the explicitly constructed Paddle client. It loads the webhook
// secret from the persisted payment_gateways record, with a short Redis cache
// in front of it; a cache failure falls back to a fresh DB read, a missing or
// inactive gateway record fails closed.
type Gateway struct {
	repo Repository
}

// NewGateway creates a Paddle gateway client from an injected repository.
func NewGateway(repo Repository) *Gateway {
	return &Gateway{repo: repo}
}

// WebhookSecret returns the current webhook signing secret.
func (g *Gateway) WebhookSecret(ctx context.Context) (string, error) {
	_ = ctx
	if secret, err := cache.Get(webhookSecretCacheKey); err == nil {
		if secret = strings.TrimSpace(secret); secret != "" {
			return secret, nil
		}
	}

	gw, err := g.repo.GetActiveGateway(models.PaymentGatewayPaddle)
	if err != nil {
		return "", ErrGatewayNotConfigured
	}
	creds, err := gw.Credentials()
	if err != nil {
		return "", ErrGatewayNotConfigured
	}
	secret := strings.TrimSpace(creds.WebhookSecret)
	if secret == "" {
		return "", ErrGatewayNotConfigured
	}

	// Best effort; verification works without the cache.
	_ = cache.Set(webhookSecretCacheKey, secret, webhookSecretCacheTTL)

	return secret, nil
}

// Refresh drops the cached secret so the next verification reloads it from
// the database. Call after rotating credentials (and from test setup).
func (g *Gateway) Refresh() {
	_ = cache.Delete(webhookSecretCacheKey)
}
