package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

type Signer struct {
	secretKey []byte
	logger    *slog.Logger
}

func NewSigner(secretKey string, logger *slog.Logger) *Signer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Signer{
		secretKey: []byte(secretKey),
		logger:    logger,
	}
}

func (s *Signer) Sign(data []byte) string {
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write(data)
	signature := mac.Sum(nil)
	return hex.EncodeToString(signature)
}

func (s *Signer) Verify(data []byte, signature string) (bool, error) {
	expectedSignature := s.Sign(data)

	if !hmac.Equal([]byte(expectedSignature), []byte(signature)) {
		s.logger.Warn("Signature verification failed",
			slog.String("expected", expectedSignature),
			slog.String("received", signature))
		return false, fmt.Errorf("invalid signature")
	}

	return true, nil
}

// Receipt derives a tamper-evident identifier for a completed transaction.
func (s *Signer) Receipt(transactionID string, amount decimal.Decimal, createdAt time.Time) string {
	data := fmt.Sprintf("%s:%s:%d", transactionID, amount.StringFixed(2), createdAt.UnixNano())
	return s.Sign([]byte(data))
}

func (s *Signer) VerifyReceipt(transactionID string, amount decimal.Decimal, createdAt time.Time, receiptID string) (bool, error) {
	data := fmt.Sprintf("%s:%s:%d", transactionID, amount.StringFixed(2), createdAt.UnixNano())
	return s.Verify([]byte(data), receiptID)
}
