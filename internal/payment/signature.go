package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// signatureTolerance bounds how stale a webhook timestamp may be; replayed
// payloads outside it are rejected even with a valid MAC.
const signatureTolerance = 5 * time.Minute

// verifyStripeSignature checks a `t=<unix>,v1=<hex hmac>` header: the MAC
// is HMAC-SHA256 over "<t>.<payload>" keyed with the webhook secret.
// Multiple v1 entries are accepted if any matches (key rotation).
func verifyStripeSignature(payload []byte, header, secret string, now time.Time) error {
	var ts int64
	var macs []string

	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: bad timestamp", ErrGatewaySignatureInvalid)
			}
			ts = n
		case "v1":
			macs = append(macs, v)
		}
	}

	if ts == 0 || len(macs) == 0 {
		return fmt.Errorf("%w: malformed header", ErrGatewaySignatureInvalid)
	}

	age := now.Sub(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrGatewaySignatureInvalid)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, m := range macs {
		if hmac.Equal([]byte(m), []byte(expected)) {
			return nil
		}
	}

	return ErrGatewaySignatureInvalid
}
