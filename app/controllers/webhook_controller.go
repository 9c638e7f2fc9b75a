package controllers

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rankpulse/rankpulse/internal/pkg/billing"
)

const webhookSignatureHeader = "Paddle-Signature"

// WebhookController owns the Paddle webhook ingestion endpoint. The service
// and gateway client are constructed once at startup and injected; nothing in
// here holds per-request state.
type WebhookController struct {
	svc     *billing.Service
	gateway *billing.Gateway
}

func NewWebhookController(svc *billing.Service, gateway *billing.Gateway) *WebhookController {
	return &WebhookController{svc: svc, gateway: gateway}
}

// HandlePaddleWebhook runs one delivery through the pipeline: signature
// check, dedupe, routing, finalize. 2xx tells Paddle to stop retrying, 5xx
// to retry later (safe: dedupe plus idempotent processors), 4xx that this
// delivery is permanently broken.
func (wc *WebhookController) HandlePaddleWebhook(c *fiber.Ctx) error {
	// The exact wire bytes; re-serialized JSON would break the signature.
	rawBody := append([]byte(nil), c.BodyRaw()...)

	signature := strings.TrimSpace(c.Get(webhookSignatureHeader))
	if signature == "" {
		log.Printf("[SECURITY] paddle webhook without signature header from %s", c.IP())
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing_signature"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Secret load failures fail closed: no verifiable signature, no access.
	secret, err := wc.gateway.WebhookSecret(ctx)
	if err != nil {
		log.Printf("[SECURITY] paddle webhook rejected, secret unavailable: %v", err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "verification_unavailable"})
	}
	if err := billing.VerifyPaddleWebhookSignature(rawBody, signature, secret, time.Now()); err != nil {
		log.Printf("[SECURITY] paddle webhook signature rejected (%s) from %s", err.Error(), c.IP())
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	envelope, err := billing.ParseEnvelope(rawBody)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	isNew, stored, err := wc.svc.RecordEventIfNew(ctx, envelope.EventID, envelope.EventType, string(rawBody))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "event_persist_failed"})
	}
	if !isNew && stored.Processed {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "duplicate": true})
	}

	handled, procErr := wc.svc.Process(ctx, envelope.EventType, envelope.Data)
	if !handled {
		// Unknown event types are acknowledged so Paddle stops redelivering.
		_ = wc.svc.MarkEventProcessed(ctx, stored.ID)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
	}
	if procErr != nil {
		log.Printf("paddle event %s (%s) failed: %v", envelope.EventID, envelope.EventType, procErr)
		_ = wc.svc.MarkEventFailed(ctx, stored.ID, procErr)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing_failed"})
	}

	if err := wc.svc.MarkEventProcessed(ctx, stored.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "event_finalize_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}
