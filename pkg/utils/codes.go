package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewDocumentID generates an internal document identifier
func NewDocumentID() string {
	return uuid.NewString()
}

// GenerateBookingID generates a unique human-facing booking ID.
// Format: B + last 6 digits of the unix-milli timestamp + 4 random hex chars.
func GenerateBookingID() string {
	ts := fmt.Sprintf("%d", time.Now().UnixMilli())
	if len(ts) > 6 {
		ts = ts[len(ts)-6:]
	}

	buf := make([]byte, 2)
	rand.Read(buf)

	return "B" + ts + strings.ToUpper(hex.EncodeToString(buf))
}

// GenerateNumericOTP generates a 4-digit one-time code in [1000, 9999]
func GenerateNumericOTP() string {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		// crypto/rand only fails if the OS entropy source is broken
		return "1000"
	}
	return fmt.Sprintf("%d", 1000+n.Int64())
}
