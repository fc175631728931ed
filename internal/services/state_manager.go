package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tkpay/internal/amqp"
	"tkpay/internal/core"
	"tkpay/internal/log"
	"tkpay/internal/remote"
)

// Local cache slot names.
const (
	SlotTransactions  = "tk_payments"
	SlotRecipients    = "tk_recipients"
	SlotHistoryBackup = "tk_history_backup"
)

// ErrRemoteSync marks a remote store failure after local state was already handled.
var ErrRemoteSync = errors.New("remote history sync failed")

// LocalCache is the synchronous key/value store backing the working state.
type LocalCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, keys ...string) error
}

// EventPublisher announces history changes. Failures never fail the caller.
type EventPublisher interface {
	PublishHistoryEvent(ctx context.Context, ev *amqp.HistoryEvent) error
}

// State is a consistent, caller-owned copy of everything the manager holds.
type State struct {
	Transactions      []core.Transaction
	Recipients        []string
	History           []core.Snapshot
	CurrentLoadedDate string
	RemoteAvailable   bool
}

// StateManager is the single authority over transactions, recipients and
// history. Every mutation is written to the local cache before it becomes
// visible in memory; a failed local write leaves the manager unchanged.
type StateManager struct {
	mu sync.Mutex

	local     LocalCache
	remote    remote.Store
	publisher EventPublisher
	logger    *log.Logger
	events    *log.StructuredLogger

	now      func() time.Time
	loc      *time.Location
	defaults []string

	transactions      []core.Transaction
	recipients        []string
	history           []core.Snapshot
	currentLoadedDate string
}

// Option configures a StateManager.
type Option func(*StateManager)

func WithClock(now func() time.Time) Option {
	return func(m *StateManager) { m.now = now }
}

// WithLocation sets the calendar used for date keys.
func WithLocation(loc *time.Location) Option {
	return func(m *StateManager) {
		if loc != nil {
			m.loc = loc
		}
	}
}

func WithDefaultRecipients(names []string) Option {
	return func(m *StateManager) {
		if len(names) > 0 {
			m.defaults = slices.Clone(names)
		}
	}
}

func WithPublisher(p EventPublisher) Option {
	return func(m *StateManager) { m.publisher = p }
}

func WithLogger(l *log.Logger) Option {
	return func(m *StateManager) {
		if l != nil {
			m.logger = l.WithComponent(log.ComponentState)
		}
	}
}

func NewStateManager(local LocalCache, store remote.Store, opts ...Option) *StateManager {
	if store == nil {
		store = remote.Unavailable{}
	}
	m := &StateManager{
		local:    local,
		remote:   store,
		logger:   log.Discard(),
		now:      time.Now,
		loc:      time.Local,
		defaults: slices.Clone(core.DefaultRecipients),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.events = log.NewStructuredLogger(m.logger)
	m.transactions = []core.Transaction{}
	m.recipients = slices.Clone(m.defaults)
	m.history = []core.Snapshot{}
	return m
}

// Initialize loads the working state from the local cache and history from
// the remote store, falling back to the local history backup when the
// remote cannot be read. Remote history wins whenever it is reachable.
func (m *StateManager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	txs := []core.Transaction{}
	if ok, err := m.readJSON(ctx, SlotTransactions, &txs); err != nil {
		return err
	} else if !ok || txs == nil {
		txs = []core.Transaction{}
	}

	var recipients []string
	if ok, err := m.readJSON(ctx, SlotRecipients, &recipients); err != nil {
		return err
	} else if !ok || len(recipients) == 0 {
		recipients = slices.Clone(m.defaults)
	}

	history, err := m.remote.GetAll(ctx)
	if err == nil {
		history = m.validHistory(ctx, dedupeByDate(history))
		if werr := m.writeJSON(ctx, SlotHistoryBackup, history); werr != nil {
			m.logger.WarnContext(ctx, "Failed to refresh local history backup", log.FieldError, werr)
		}
		m.logger.InfoContext(ctx, "History loaded from remote store", log.FieldCount, len(history))
	} else {
		m.logger.WarnContext(ctx, "Remote history unavailable, using local backup",
			log.FieldError, err, log.FieldRemote, m.remote.Available())
		history = nil
		if ok, berr := m.readJSON(ctx, SlotHistoryBackup, &history); berr != nil {
			return berr
		} else if !ok {
			history = nil
		}
		history = m.validHistory(ctx, history)
	}
	if history == nil {
		history = []core.Snapshot{}
	}

	m.transactions = txs
	m.recipients = recipients
	m.history = history
	m.currentLoadedDate = ""
	return nil
}

// AddTransaction appends a payment stamped with the current time. Identities
// stay unique: a timestamp not after the newest entry is moved 1ns past it.
func (m *StateManager) AddTransaction(ctx context.Context, name string, amount decimal.Decimal) (core.Transaction, error) {
	name = strings.TrimSpace(name)
	if name == "" || !amount.IsPositive() {
		return core.Transaction{}, core.ErrInvalidTransaction
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ts := m.now().UTC()
	for _, tx := range m.transactions {
		if !ts.After(tx.Timestamp) {
			ts = tx.Timestamp.UTC().Add(time.Nanosecond)
		}
	}
	tx := core.Transaction{Name: name, Amount: amount, Timestamp: ts}

	next := append(core.CloneTransactions(m.transactions), tx)
	if err := m.writeJSON(ctx, SlotTransactions, next); err != nil {
		return core.Transaction{}, err
	}
	m.transactions = next

	m.events.LogTransactionAdded(ctx, tx.ID(), tx.Name, tx.Amount.String())
	return tx, nil
}

// DeleteTransaction removes the transaction with the given identity. An
// unknown id is a no-op reported as false.
func (m *StateManager) DeleteTransaction(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := slices.IndexFunc(m.transactions, func(tx core.Transaction) bool { return tx.ID() == id })
	if idx < 0 {
		return false, nil
	}

	next := slices.Delete(core.CloneTransactions(m.transactions), idx, idx+1)
	if err := m.writeJSON(ctx, SlotTransactions, next); err != nil {
		return false, err
	}
	m.transactions = next
	return true, nil
}

// ClearCurrentTransactions empties the working log and forgets the loaded
// date. It is the second half of the save protocol.
func (m *StateManager) ClearCurrentTransactions(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	empty := []core.Transaction{}
	if err := m.writeJSON(ctx, SlotTransactions, empty); err != nil {
		return err
	}
	m.transactions = empty
	m.currentLoadedDate = ""
	return nil
}

// AddRecipient appends a new, trimmed recipient name.
func (m *StateManager) AddRecipient(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrBlankRecipient
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if slices.Contains(m.recipients, name) {
		return core.ErrDuplicateRecipient
	}
	next := append(slices.Clone(m.recipients), name)
	if err := m.writeJSON(ctx, SlotRecipients, next); err != nil {
		return err
	}
	m.recipients = next
	return nil
}

// SaveCurrentTransactions snapshots the working log under the loaded date,
// or today when nothing is loaded, replacing any snapshot with that key.
// Local state is committed before the remote write; a remote failure is
// returned wrapped in ErrRemoteSync together with the date key.
func (m *StateManager) SaveCurrentTransactions(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.transactions) == 0 {
		return "", core.ErrNothingToSave
	}

	dateKey := m.currentLoadedDate
	if dateKey == "" {
		dateKey = core.DateKey(m.now(), m.loc)
	}
	snap := core.NewSnapshot(dateKey, m.transactions, m.now().UTC())

	next := core.CloneSnapshots(m.history)
	if i := indexOfDate(next, dateKey); i >= 0 {
		next[i] = snap
	} else {
		next = append(next, snap)
	}
	if err := m.writeJSON(ctx, SlotHistoryBackup, next); err != nil {
		return "", err
	}
	m.history = next
	m.currentLoadedDate = dateKey

	remoteErr := m.remote.Put(ctx, snap)
	m.events.LogSnapshotSaved(ctx, dateKey, len(snap.Transactions), snap.Total.String(), remoteErr)
	if remoteErr != nil {
		return dateKey, fmt.Errorf("%w: %w", ErrRemoteSync, remoteErr)
	}

	m.publish(ctx, amqp.NewSavedEvent(snap))
	return dateKey, nil
}

// LoadTransactionsFromHistory replaces the working log with a copy of the
// snapshot stored under dateKey and marks it as loaded.
func (m *StateManager) LoadTransactionsFromHistory(ctx context.Context, dateKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := indexOfDate(m.history, dateKey)
	if i < 0 {
		return core.ErrSnapshotNotFound
	}

	txs := core.CloneTransactions(m.history[i].Transactions)
	if err := m.writeJSON(ctx, SlotTransactions, txs); err != nil {
		return err
	}
	m.transactions = txs
	m.currentLoadedDate = dateKey
	return nil
}

// DeleteHistoryEntry removes a snapshot remotely and then locally. If the
// remote delete fails nothing is removed and the error is returned.
func (m *StateManager) DeleteHistoryEntry(ctx context.Context, dateKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := indexOfDate(m.history, dateKey)
	if i < 0 {
		return nil
	}

	if err := m.remote.Delete(ctx, dateKey); err != nil {
		m.logger.ErrorContext(ctx, "Remote history delete failed, keeping local copy",
			log.FieldDateKey, dateKey, log.FieldError, err)
		return fmt.Errorf("%w: %w", ErrRemoteSync, err)
	}

	next := slices.Delete(core.CloneSnapshots(m.history), i, i+1)
	if err := m.writeJSON(ctx, SlotHistoryBackup, next); err != nil {
		return err
	}
	m.history = next
	if m.currentLoadedDate == dateKey {
		m.currentLoadedDate = ""
	}

	m.logger.InfoContext(ctx, "History entry deleted", log.FieldDateKey, dateKey)
	m.publish(ctx, amqp.NewDeletedEvent(dateKey))
	return nil
}

// ClearAllData resets the local state: no transactions, default recipients,
// no history. The remote store is left untouched, so remote history comes
// back on the next Initialize.
func (m *StateManager) ClearAllData(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.local.Remove(ctx, SlotTransactions, SlotRecipients, SlotHistoryBackup); err != nil {
		return fmt.Errorf("clear local cache: %w", err)
	}

	m.transactions = []core.Transaction{}
	m.recipients = slices.Clone(m.defaults)
	m.history = []core.Snapshot{}
	m.currentLoadedDate = ""

	if err := m.writeJSON(ctx, SlotTransactions, m.transactions); err != nil {
		return err
	}
	if err := m.writeJSON(ctx, SlotRecipients, m.recipients); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "Local data cleared", log.FieldOperation, log.OpClear)
	return nil
}

func (m *StateManager) Transactions() []core.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return core.CloneTransactions(m.transactions)
}

func (m *StateManager) Recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.recipients)
}

// History returns the snapshots in stored order.
func (m *StateManager) History() []core.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return core.CloneSnapshots(m.history)
}

func (m *StateManager) CurrentLoadedDate() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLoadedDate
}

func (m *StateManager) RemoteAvailable() bool {
	return m.remote.Available()
}

// Snapshot returns all state under one lock acquisition.
func (m *StateManager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		Transactions:      core.CloneTransactions(m.transactions),
		Recipients:        slices.Clone(m.recipients),
		History:           core.CloneSnapshots(m.history),
		CurrentLoadedDate: m.currentLoadedDate,
		RemoteAvailable:   m.remote.Available(),
	}
}

func (m *StateManager) publish(ctx context.Context, ev *amqp.HistoryEvent) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.PublishHistoryEvent(ctx, ev); err != nil {
		m.logger.WarnContext(ctx, "Failed to publish history event",
			log.FieldEventType, ev.Type, log.FieldDateKey, ev.Date, log.FieldError, err)
	}
}

func (m *StateManager) readJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := m.local.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok || raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		m.logger.WarnContext(ctx, "Ignoring corrupt cache slot", "slot", key, log.FieldError, err)
		return false, nil
	}
	return true, nil
}

func (m *StateManager) writeJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := m.local.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}

// validHistory drops snapshots that fail validation, such as hand-edited
// backups or objects written by another tool.
func (m *StateManager) validHistory(ctx context.Context, history []core.Snapshot) []core.Snapshot {
	if history == nil {
		return nil
	}
	return slices.DeleteFunc(history, func(snap core.Snapshot) bool {
		err := snap.Validate()
		if err != nil {
			m.logger.WarnContext(ctx, "Dropping invalid history snapshot",
				log.FieldDateKey, snap.Date, log.FieldError, err)
		}
		return err != nil
	})
}

func indexOfDate(history []core.Snapshot, dateKey string) int {
	return slices.IndexFunc(history, func(s core.Snapshot) bool { return s.Date == dateKey })
}

// dedupeByDate keeps the last snapshot seen for each date, in first-seen order.
func dedupeByDate(history []core.Snapshot) []core.Snapshot {
	out := make([]core.Snapshot, 0, len(history))
	for _, s := range history {
		if i := indexOfDate(out, s.Date); i >= 0 {
			out[i] = s
			continue
		}
		out = append(out, s)
	}
	return out
}
