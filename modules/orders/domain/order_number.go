package domain

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"regexp"
	"time"
)

const orderNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var orderNumberPattern = regexp.MustCompile(`^ORD-\d{4}-[A-Z0-9]{8}$`)

// NewOrderNumber returns ORD-<year>-<8 random characters from [A-Z0-9]>.
// Numbers are not guaranteed unique; the caller checks for collisions.
func NewOrderNumber(now time.Time) (string, error) {
	return newOrderNumber(now, rand.Reader)
}

func newOrderNumber(now time.Time, r io.Reader) (string, error) {
	suffix := make([]byte, 8)
	limit := big.NewInt(int64(len(orderNumberAlphabet)))
	for i := range suffix {
		n, err := rand.Int(r, limit)
		if err != nil {
			return "", fmt.Errorf("generating order number: %w", err)
		}
		suffix[i] = orderNumberAlphabet[n.Int64()]
	}
	return fmt.Sprintf("ORD-%04d-%s", now.Year(), suffix), nil
}

func IsOrderNumber(s string) bool {
	return orderNumberPattern.MatchString(s)
}
