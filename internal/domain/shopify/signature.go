package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// Signature verifies HMAC-SHA256 signatures of Shopify webhooks.
type Signature struct {
	secret string
}

// NewSignature creates a new Signature utility.
func NewSignature(secret string) *Signature {
	return &Signature{secret: secret}
}

// Sign returns the base64 encoded HMAC-SHA256 of body.
func (s *Signature) Sign(body []byte) string {
	h := hmac.New(sha256.New, []byte(s.secret))
	h.Write(body)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// VerifyWebhook checks the X-Shopify-Hmac-Sha256 header against the raw body.
// An unconfigured secret never verifies.
func (s *Signature) VerifyWebhook(body []byte, providedSignature string) bool {
	if s.secret == "" || providedSignature == "" {
		return false
	}
	expected := s.Sign(body)
	return hmac.Equal([]byte(expected), []byte(providedSignature))
}
