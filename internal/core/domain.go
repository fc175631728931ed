package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is the wire format of a transaction identity.
const TimestampLayout = time.RFC3339Nano

type (
	// Transaction is a single cash payment to a recipient. Its identity is
	// the creation timestamp.
	Transaction struct {
		Name      string          `json:"name"`
		Amount    decimal.Decimal `json:"amount"`
		Timestamp time.Time       `json:"timestamp"`
	}

	// Snapshot is a saved copy of the transaction log for one calendar day.
	Snapshot struct {
		Date         string          `json:"date"`
		Transactions []Transaction   `json:"transactions"`
		Total        decimal.Decimal `json:"total"`
		SavedAt      time.Time       `json:"savedAt"`
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrNothingToSave      = errors.New("cannot save an empty transaction list")
	ErrBlankRecipient     = errors.New("recipient name is blank")
	ErrDuplicateRecipient = errors.New("recipient already exists")
	ErrSnapshotNotFound   = errors.New("history entry not found")
	ErrInvalidDateKey     = errors.New("invalid date key")
)

// DefaultRecipients seeds the recipient list on first run and after a reset.
var DefaultRecipients = []string{"Jolpai Ali", "Mahamod", "Hotel", "Tamim", "Mamon", "Ismail", "Aziz"}

// ID returns the transaction identity.
func (t Transaction) ID() string {
	return t.Timestamp.UTC().Format(TimestampLayout)
}

// Validate rejects entries AddTransaction could never have produced.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrInvalidTransaction
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if t.Timestamp.IsZero() {
		return ErrInvalidTransaction
	}
	return nil
}

// NewSnapshot copies txs and computes the total at creation time.
func NewSnapshot(dateKey string, txs []Transaction, savedAt time.Time) Snapshot {
	return Snapshot{
		Date:         dateKey,
		Transactions: CloneTransactions(txs),
		Total:        Total(txs),
		SavedAt:      savedAt,
	}
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	s.Transactions = CloneTransactions(s.Transactions)
	return s
}

// Validate checks a snapshot read back from storage: a well-formed date key
// and only valid transactions. The stored total is trusted as written.
func (s Snapshot) Validate() error {
	if _, err := ParseDateKey(s.Date); err != nil {
		return err
	}
	for i, t := range s.Transactions {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
	}
	return nil
}

// CloneTransactions returns a copy of txs that shares no backing array.
// A nil input yields an empty, non-nil slice.
func CloneTransactions(txs []Transaction) []Transaction {
	out := make([]Transaction, len(txs))
	copy(out, txs)
	return out
}

// CloneSnapshots deep-copies a history list.
func CloneSnapshots(history []Snapshot) []Snapshot {
	out := make([]Snapshot, len(history))
	for i, s := range history {
		out[i] = s.Clone()
	}
	return out
}

// Total sums the amounts of txs.
func Total(txs []Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, tx := range txs {
		sum = sum.Add(tx.Amount)
	}
	return sum
}
