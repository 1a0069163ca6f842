// Package history tracks opt-out submissions per broker: what was
// submitted, when, whether it still needs verification, and when the broker
// should be re-checked for re-listed data.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/unlist/pkg/registry"
)

const historyFilename = "submissions.json"

// SubmissionStatus is the lifecycle state of one submission.
type SubmissionStatus string

const (
	StatusSubmitted           SubmissionStatus = "submitted"
	StatusPendingVerification SubmissionStatus = "pending_verification"
	StatusConfirmed           SubmissionStatus = "confirmed"
	StatusFailed              SubmissionStatus = "failed"
	StatusRelisted            SubmissionStatus = "re_listed"
)

// Record is one opt-out submission for one broker.
type Record struct {
	ID            string           `json:"id"`
	BrokerID      string           `json:"broker_id"`
	Status        SubmissionStatus `json:"status"`
	SubmittedAt   time.Time        `json:"submitted_at"`
	ConfirmedAt   *time.Time       `json:"confirmed_at,omitempty"`
	NextCheckDate *time.Time       `json:"next_check_date,omitempty"`
	ErrorMessage  string           `json:"error_message,omitempty"`
	RunID         string           `json:"run_id"`
}

type historyFile struct {
	Records []Record `json:"records"`
}

// Store persists submission records as a single JSON file.
type Store struct {
	path string
	mu   sync.RWMutex
}

// NewStore opens the history store at dir, or ~/.unlist when dir is empty.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to determine home directory: %w", err)
		}
		dir = filepath.Join(home, ".unlist")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &Store{path: filepath.Join(dir, historyFilename)}, nil
}

func (s *Store) load() (*historyFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &historyFile{}, nil
		}
		return nil, fmt.Errorf("failed to read submission history: %w", err)
	}
	var file historyFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse submission history: %w", err)
	}
	return &file, nil
}

func (s *Store) save(file *historyFile) error {
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode submission history: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write submission history: %w", err)
	}
	return nil
}

// Upsert inserts the record, or replaces the existing record with the same
// id.
func (s *Store) Upsert(record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}
	for i, existing := range file.Records {
		if existing.ID == record.ID {
			file.Records[i] = record
			return s.save(file)
		}
	}
	file.Records = append(file.Records, record)
	return s.save(file)
}

// All returns every submission record.
func (s *Store) All() ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.load()
	if err != nil {
		return nil, err
	}
	return file.Records, nil
}

// ByBroker returns all records for one broker.
func (s *Store) ByBroker(brokerID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, r := range file.Records {
		if r.BrokerID == brokerID {
			out = append(out, r)
		}
	}
	return out, nil
}

// LatestPerBroker returns each broker's most recent submission.
func (s *Store) LatestPerBroker() ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.load()
	if err != nil {
		return nil, err
	}
	latest := make(map[string]Record)
	for _, r := range file.Records {
		if cur, ok := latest[r.BrokerID]; !ok || r.SubmittedAt.After(cur.SubmittedAt) {
			latest[r.BrokerID] = r
		}
	}
	out := make([]Record, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	return out, nil
}

// DueForRecheck returns brokers whose latest submission has a next check
// date at or before now. Brokers publish relist windows; data often
// reappears after them.
func (s *Store) DueForRecheck(now time.Time) ([]Record, error) {
	latest, err := s.LatestPerBroker()
	if err != nil {
		return nil, err
	}
	var due []Record
	for _, r := range latest {
		if r.NextCheckDate != nil && !r.NextCheckDate.After(now) {
			due = append(due, r)
		}
	}
	return due, nil
}

// RecordSuccess writes a submitted record for the broker. Brokers that
// require verification land in pending_verification; brokers with a relist
// window get a next check date.
func (s *Store) RecordSuccess(broker registry.Broker, runID string) error {
	status := StatusSubmitted
	if broker.RequiresVerification != "" {
		status = StatusPendingVerification
	}
	record := Record{
		ID:          uuid.New().String(),
		BrokerID:    broker.ID,
		Status:      status,
		SubmittedAt: time.Now().UTC(),
		RunID:       runID,
	}
	if broker.RelistDays > 0 {
		next := record.SubmittedAt.AddDate(0, 0, int(broker.RelistDays))
		record.NextCheckDate = &next
	}
	return s.Upsert(record)
}

// RecordFailure writes a failed record for the broker.
func (s *Store) RecordFailure(broker registry.Broker, runID, message string) error {
	return s.Upsert(Record{
		ID:           uuid.New().String(),
		BrokerID:     broker.ID,
		Status:       StatusFailed,
		SubmittedAt:  time.Now().UTC(),
		ErrorMessage: message,
		RunID:        runID,
	})
}

// Confirm marks a record as confirmed by the broker.
func (s *Store) Confirm(recordID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}
	for i, r := range file.Records {
		if r.ID == recordID {
			file.Records[i].Status = StatusConfirmed
			file.Records[i].ConfirmedAt = &at
			return s.save(file)
		}
	}
	return fmt.Errorf("submission record %s not found", recordID)
}
