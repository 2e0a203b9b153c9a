package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	appErrors "github.com/chroma-cms/agent-api/pkg/errors"
)

// Optional request signing headers. Agents that opt in must send both; a
// lone header is treated as a broken signature, not an unsigned request.
const (
	HeaderTimestamp = "X-Chroma-Timestamp"
	HeaderSignature = "X-Chroma-Signature"
)

// ComputeSignature builds the hex HMAC-SHA256 over the canonical request
// string, keyed by the raw API token. The canonical form is
// METHOD, PATH, TIMESTAMP and BODY joined by newlines.
func ComputeSignature(rawToken, method, path, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(rawToken))
	fmt.Fprintf(mac, "%s\n%s\n%s\n", method, path, timestamp)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks an optional request signature. Both headers empty
// means the request is unsigned and passes. The timestamp must be a plain
// unix-seconds integer within the allowed skew of now.
func VerifySignature(rawToken, method, path, timestamp, signature string, body []byte, now time.Time, skew time.Duration) error {
	if timestamp == "" && signature == "" {
		return nil
	}
	if timestamp == "" || signature == "" {
		return appErrors.ErrSignatureMissing
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil || ts <= 0 {
		return appErrors.ErrSignatureInvalid
	}

	sent := time.Unix(ts, 0)
	drift := now.Sub(sent)
	if drift < 0 {
		drift = -drift
	}
	if drift > skew {
		return appErrors.ErrSignatureExpired
	}

	expected := ComputeSignature(rawToken, method, path, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return appErrors.ErrSignatureMismatch
	}
	return nil
}
