// Package orderid derives deterministic, idempotent client order ids. The
// venue and the order journal reject a duplicate id instead of re-executing,
// so the same intended trade can be retried safely.
package orderid

import (
	"crypto/sha256"
	"fmt"
	"time"

	"spot-trade-bot-go/internal/models"

	"github.com/jxskiss/base62"
)

const prefix = "sb"

// New derives a client order id from (instance id, side, decision timestamp,
// nonce). The same inputs always produce the same id; distinct nonces never
// collide.
func New(instanceID string, side models.Side, decisionAt time.Time, nonce int) string {
	payload := fmt.Sprintf("%s|%s|%d|%d", instanceID, side, decisionAt.UnixMilli(), nonce)
	sum := sha256.Sum256([]byte(payload))
	return fmt.Sprintf("%s-%s", prefix, base62.EncodeToString(sum[:16]))
}
