package domain

import (
	"fmt"
	"strings"
	"time"
)

// Transaction is an immutable input record to the scoring engine.
// Records are supplied fully materialized by the ingestion collaborator
// and are never mutated by the core.
type Transaction struct {
	ID string `json:"id"`

	// Parties
	SenderAccount   string `json:"senderAccount"`
	ReceiverAccount string `json:"receiverAccount"`

	// Financial details
	Amount           float64 `json:"amount"`
	PaymentCurrency  string  `json:"paymentCurrency"`
	ReceivedCurrency string  `json:"receivedCurrency"`

	// Bank location codes (e.g. "UK-LON", "AE-DXB")
	SenderLocation   string `json:"senderLocation"`
	ReceiverLocation string `json:"receiverLocation"`

	// Payment type (categorical, open set)
	PaymentType string `json:"paymentType"`

	// Temporal. Timestamp combines the source date and time-of-day.
	Timestamp time.Time `json:"timestamp"`

	// Ground-truth label, used only for training and evaluation.
	IsLaundering bool `json:"isLaundering"`

	// Optional laundering typology tag, informational only.
	LaunderingType string `json:"launderingType,omitempty"`
}

// Hour returns the transaction's hour of day in [0, 23].
func (t *Transaction) Hour() int {
	return t.Timestamp.Hour()
}

// MinutesSinceMidnight returns the time-of-day in minutes.
func (t *Transaction) MinutesSinceMidnight() int {
	return t.Timestamp.Hour()*60 + t.Timestamp.Minute()
}

// IsCrossBorder reports whether sender and receiver bank locations differ.
func (t *Transaction) IsCrossBorder() bool {
	return t.SenderLocation != t.ReceiverLocation
}

// IsCurrencyMismatch reports whether payment and received currencies differ.
func (t *Transaction) IsCurrencyMismatch() bool {
	return t.PaymentCurrency != t.ReceivedCurrency
}

// IsStructuringAmount reports whether the amount falls in the structuring
// band just below the 10,000 reporting threshold.
func (t *Transaction) IsStructuringAmount() bool {
	return t.Amount >= StructuringMin && t.Amount < StructuringMax
}

// DateKey returns the calendar date portion of the timestamp, used for
// same-day rapid-transaction counting.
func (t *Transaction) DateKey() string {
	return t.Timestamp.Format("2006-01-02")
}

// Structuring band boundaries: amounts just below the 10,000 reporting
// threshold.
const (
	StructuringMin = 9000.0
	StructuringMax = 10000.0
)

// TransactionRecord is the API request payload for a single transaction.
// Date and time-of-day arrive as the source system's strings and are
// parsed at the boundary.
type TransactionRecord struct {
	ID               string  `json:"id,omitempty"`
	Date             string  `json:"date"` // "2006-01-02"
	Time             string  `json:"time"` // "15:04:05"
	SenderAccount    string  `json:"senderAccount"`
	ReceiverAccount  string  `json:"receiverAccount"`
	Amount           float64 `json:"amount"`
	PaymentCurrency  string  `json:"paymentCurrency"`
	ReceivedCurrency string  `json:"receivedCurrency"`
	SenderLocation   string  `json:"senderLocation"`
	ReceiverLocation string  `json:"receiverLocation"`
	PaymentType      string  `json:"paymentType"`
	IsLaundering     bool    `json:"isLaundering,omitempty"`
	LaunderingType   string  `json:"launderingType,omitempty"`
}

// Validate checks the required field set and reports every missing field.
func (r *TransactionRecord) Validate() error {
	var missing []string
	if r.SenderAccount == "" {
		missing = append(missing, "senderAccount")
	}
	if r.ReceiverAccount == "" {
		missing = append(missing, "receiverAccount")
	}
	if r.PaymentCurrency == "" {
		missing = append(missing, "paymentCurrency")
	}
	if r.ReceivedCurrency == "" {
		missing = append(missing, "receivedCurrency")
	}
	if r.SenderLocation == "" {
		missing = append(missing, "senderLocation")
	}
	if r.ReceiverLocation == "" {
		missing = append(missing, "receiverLocation")
	}
	if r.PaymentType == "" {
		missing = append(missing, "paymentType")
	}
	if r.Date == "" {
		missing = append(missing, "date")
	}
	if r.Time == "" {
		missing = append(missing, "time")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	if r.Amount < 0 {
		return fmt.Errorf("amount must be non-negative, got %v", r.Amount)
	}
	return nil
}

// ToTransaction parses the record into a Transaction domain object.
func (r *TransactionRecord) ToTransaction() (*Transaction, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	ts, err := time.Parse("2006-01-02 15:04:05", r.Date+" "+r.Time)
	if err != nil {
		return nil, fmt.Errorf("invalid date/time %q %q: %w", r.Date, r.Time, err)
	}

	return &Transaction{
		ID:               r.ID,
		SenderAccount:    r.SenderAccount,
		ReceiverAccount:  r.ReceiverAccount,
		Amount:           r.Amount,
		PaymentCurrency:  r.PaymentCurrency,
		ReceivedCurrency: r.ReceivedCurrency,
		SenderLocation:   r.SenderLocation,
		ReceiverLocation: r.ReceiverLocation,
		PaymentType:      r.PaymentType,
		Timestamp:        ts,
		IsLaundering:     r.IsLaundering,
		LaunderingType:   r.LaunderingType,
	}, nil
}
