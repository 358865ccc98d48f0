package order

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	numberAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	numberSuffix   = 8
)

// newOrderNumber returns ORD-<unix millis>-<8 random base36 characters>.
func newOrderNumber(now time.Time) (string, error) {
	max := big.NewInt(int64(len(numberAlphabet)))
	suffix := make([]byte, numberSuffix)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate order number: %w", err)
		}
		suffix[i] = numberAlphabet[n.Int64()]
	}
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), suffix), nil
}
