package payment

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

// ErrBadSignature indicates the webhook signature header is missing,
// malformed, expired or does not match the payload.
var ErrBadSignature = errors.New("payment: bad webhook signature")

// signatureTolerance bounds the accepted age of a signed webhook, limiting
// replay of captured payloads.
const signatureTolerance = 5 * time.Minute

// SignPayload produces a signature header for body at time t, in the form
// `t=<unix>,v1=<hex hmac-sha256 of "<unix>.<body>">`.
func SignPayload(secret string, t time.Time, body []byte) string {
	ts := strconv.FormatInt(t.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// VerifySignature checks a webhook signature header against the payload.
// The timestamp must fall within the replay tolerance of now.
func VerifySignature(secret, header string, body []byte, now time.Time) error {
	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			ts = value
		case "v1":
			sigs = append(sigs, value)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return ErrBadSignature
	}

	unix, errParse := strconv.ParseInt(ts, 10, 64)
	if errParse != nil {
		return ErrBadSignature
	}
	age := now.Sub(time.Unix(unix, 0))
	if age < -signatureTolerance || age > signatureTolerance {
		return ErrBadSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	for _, sig := range sigs {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return ErrBadSignature
}
