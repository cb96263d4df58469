package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"
)

// signer issues and checks HMAC-signed expiring download links for
// rendered minutes, so results can be shared without exposing the API.
type signer struct {
	secret  string
	baseURL string
	ttl     time.Duration
}

func (s signer) Generate(jobID, format string) (string, time.Time) {
	expiresAt := time.Now().Add(s.ttl)
	path := fmt.Sprintf("/files/%s/%s", jobID, format)
	signature := computeSignature(path, expiresAt.Unix(), s.secret)
	return fmt.Sprintf("%s%s?exp=%d&sig=%s", s.baseURL, path, expiresAt.Unix(), signature), expiresAt
}

func (s signer) Validate(path string, expiresAt int64, signature string) bool {
	expected := computeSignature(path, expiresAt, s.secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}

func computeSignature(path string, expiresAt int64, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(fmt.Sprintf("%s:%d", path, expiresAt)))
	sig := h.Sum(nil)
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(sig)
}
