package validator

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("invalid transfer amount")
	ErrMissingParty  = errors.New("missing transfer party")
	ErrSelfTransfer  = errors.New("cannot transfer to yourself")
)

type TransferValidator struct{}

func NewTransferValidator() *TransferValidator {
	return &TransferValidator{}
}

func (v *TransferValidator) ValidateTransfer(senderID, recipientID string, amount decimal.Decimal) error {
	if senderID == "" || recipientID == "" {
		return ErrMissingParty
	}
	if senderID == recipientID {
		return ErrSelfTransfer
	}
	return v.ValidateAmount(amount)
}

func (v *TransferValidator) ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}
