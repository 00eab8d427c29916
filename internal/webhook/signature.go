package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"time"
)

const (
	SignatureHeader = "x-webhook-signature"
	TimestampHeader = "x-webhook-timestamp"

	DefaultTolerance = 5 * time.Minute
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// Sign returns base64(HMAC-SHA256(secret, timestamp + body)), the scheme the
// provider uses for notify_url deliveries. timestamp is in milliseconds.
func Sign(secret string, timestamp string, body []byte) string {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write([]byte(timestamp))
	m.Write(body)
	return base64.StdEncoding.EncodeToString(m.Sum(nil))
}

// Verifier checks deliveries against every merchant secret, since the
// sub-account is only known after the body has been trusted.
type Verifier struct {
	secrets   []string
	tolerance time.Duration
	now       func() time.Time
}

func NewVerifier(secrets []string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{secrets: secrets, tolerance: tolerance, now: time.Now}
}

func (v *Verifier) Verify(timestamp, signature string, body []byte) error {
	if timestamp == "" || signature == "" {
		return ErrInvalidSignature
	}
	ms, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	skew := v.now().Sub(time.UnixMilli(ms))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.tolerance {
		return ErrInvalidSignature
	}

	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	for _, secret := range v.secrets {
		want, _ := base64.StdEncoding.DecodeString(Sign(secret, timestamp, body))
		if hmac.Equal(got, want) {
			return nil
		}
	}
	return ErrInvalidSignature
}
