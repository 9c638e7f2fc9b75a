package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureTolerance is the maximum accepted clock skew between the
// timestamp embedded in a Paddle-Signature header and our clock. Anything
// older (or further in the future) is treated as a replay.
const SignatureTolerance = 300 * time.Second

// Verification failures carry a coarse reason code only; the HTTP layer must
// not leak anything more specific to the caller.
var (
	ErrSignatureInvalidFormat = errors.New("invalid_format")
	ErrSignatureStale         = errors.New("stale_timestamp")
	ErrSignatureMismatch      = errors.New("signature_mismatch")
)

// ParsePaddleSignatureHeader splits a "ts=<unix-seconds>;h1=<hex-hmac>"
// header into its timestamp and signature parts.
func ParsePaddleSignatureHeader(header string) (int64, []byte, error) {
	parts := strings.Split(strings.TrimSpace(header), ";")
	if len(parts) != 2 {
		return 0, nil, ErrSignatureInvalidFormat
	}

	tsPart, ok := strings.CutPrefix(parts[0], "ts=")
	if !ok {
		return 0, nil, ErrSignatureInvalidFormat
	}
	sigPart, ok := strings.CutPrefix(parts[1], "h1=")
	if !ok {
		return 0, nil, ErrSignatureInvalidFormat
	}

	if tsPart == "" || !isAllDigits(tsPart) {
		return 0, nil, ErrSignatureInvalidFormat
	}
	ts, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return 0, nil, ErrSignatureInvalidFormat
	}

	sig, err := hex.DecodeString(strings.ToLower(sigPart))
	if err != nil || len(sig) == 0 {
		return 0, nil, ErrSignatureInvalidFormat
	}

	return ts, sig, nil
}

// VerifyPaddleWebhookSignature authenticates a raw webhook body against its
// Paddle-Signature header. The body must be the exact bytes received on the
// wire. Pure function of (body, header, secret, now); fails closed.
func VerifyPaddleWebhookSignature(rawBody []byte, header, secret string, now time.Time) error {
	if strings.TrimSpace(secret) == "" {
		return ErrSignatureMismatch
	}

	ts, sig, err := ParsePaddleSignatureHeader(header)
	if err != nil {
		return err
	}

	age := now.Unix() - ts
	if age < 0 {
		age = -age
	}
	if time.Duration(age)*time.Second > SignatureTolerance {
		return ErrSignatureStale
	}

	expected := computeSignature(rawBody, secret, ts)
	// Length is not secret; only the comparison of equal-length values needs
	// to be constant time.
	if len(sig) != len(expected) {
		return ErrSignatureMismatch
	}
	if !hmac.Equal(sig, expected) {
		return ErrSignatureMismatch
	}
	return nil
}

// SignPaddleWebhook produces a valid Paddle-Signature header value for the
// given body. Counterpart of VerifyPaddleWebhookSignature, used in tests.
func SignPaddleWebhook(rawBody []byte, secret string, ts int64) string {
	return fmt.Sprintf("ts=%d;h1=%s", ts, hex.EncodeToString(computeSignature(rawBody, secret, ts)))
}

func computeSignature(rawBody []byte, secret string, ts int64) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d:", ts)
	mac.Write(rawBody)
	return mac.Sum(nil)
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
