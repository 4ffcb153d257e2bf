package orderid

import (
	"testing"
	"time"

	"spot-trade-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestNewIsDeterministic(t *testing.T) {
	at := time.UnixMilli(1724490000000)

	a := New("inst-1", models.Buy, at, 0)
	b := New("inst-1", models.Buy, at, 0)
	assert.Equal(t, a, b)
}

func TestNewDistinctNonces(t *testing.T) {
	at := time.UnixMilli(1724490000000)

	seen := make(map[string]bool)
	for nonce := 0; nonce < 64; nonce++ {
		id := New("inst-1", models.Buy, at, nonce)
		assert.False(t, seen[id], "nonce %d collided", nonce)
		seen[id] = true
	}
}

func TestNewSensitiveToEveryInput(t *testing.T) {
	at := time.UnixMilli(1724490000000)
	base := New("inst-1", models.Buy, at, 0)

	assert.NotEqual(t, base, New("inst-2", models.Buy, at, 0))
	assert.NotEqual(t, base, New("inst-1", models.Sell, at, 0))
	assert.NotEqual(t, base, New("inst-1", models.Buy, at.Add(time.Millisecond), 0))
	assert.NotEqual(t, base, New("inst-1", models.Buy, at, 1))
}
