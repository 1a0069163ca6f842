package playbook

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/unlist/pkg/types"
)

// Draft is a locally saved playbook draft produced by the recorder. Drafts
// stay mutable until submitted to the catalog.
type Draft struct {
	ID          string               `json:"id"`
	BrokerID    string               `json:"brokerId"`
	BrokerName  string               `json:"brokerName"`
	Title       string               `json:"title,omitempty"`
	Notes       string               `json:"notes,omitempty"`
	Steps       []types.PlaybookStep `json:"steps"`
	CreatedAt   string               `json:"createdAt"`
	UpdatedAt   string               `json:"updatedAt"`
	SubmittedAt string               `json:"submittedAt,omitempty"`
}

// Playbook renders the draft as an executable playbook with local status.
func (d *Draft) Playbook() *types.Playbook {
	return &types.Playbook{
		ID:         d.ID,
		BrokerID:   d.BrokerID,
		BrokerName: d.BrokerName,
		Title:      d.Title,
		Status:     types.StatusLocal,
		Notes:      d.Notes,
		Steps:      d.Steps,
		CreatedAt:  d.CreatedAt,
	}
}

type draftFile struct {
	Playbooks []Draft `json:"playbooks"`
}

// DraftStore persists playbook drafts to a JSON file. Every write passes
// through the validator first, so an unsafe sequence can never be saved.
type DraftStore struct {
	path string
	mu   sync.RWMutex
}

// NewDraftStore creates a store backed by the given file. If path is empty,
// defaults to ~/.unlist/local_playbooks.json.
func NewDraftStore(path string) (*DraftStore, error) {
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".unlist", "local_playbooks.json")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create draft directory: %w", err)
	}
	return &DraftStore{path: path}, nil
}

func (s *DraftStore) load() (*draftFile, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &draftFile{}, nil
		}
		return nil, fmt.Errorf("failed to read drafts: %w", err)
	}
	var file draftFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse drafts: %w", err)
	}
	return &file, nil
}

func (s *DraftStore) save(file *draftFile) error {
	raw, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode drafts: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0600); err != nil {
		return fmt.Errorf("failed to write drafts: %w", err)
	}
	return nil
}

// All returns every saved draft.
func (s *DraftStore) All() ([]Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	file, err := s.load()
	if err != nil {
		return nil, err
	}
	return file.Playbooks, nil
}

// Get returns the draft with the given id.
func (s *DraftStore) Get(id string) (*Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	file, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range file.Playbooks {
		if file.Playbooks[i].ID == id {
			return &file.Playbooks[i], nil
		}
	}
	return nil, fmt.Errorf("draft %q not found", id)
}

// Upsert validates the draft's steps and inserts or replaces it. A draft
// without an id is assigned one.
func (s *DraftStore) Upsert(draft Draft) (string, error) {
	if err := Validate(draft.Steps); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	if draft.ID == "" {
		draft.ID = uuid.New().String()
		draft.CreatedAt = now
	}
	draft.UpdatedAt = now

	file, err := s.load()
	if err != nil {
		return "", err
	}
	replaced := false
	for i := range file.Playbooks {
		if file.Playbooks[i].ID == draft.ID {
			file.Playbooks[i] = draft
			replaced = true
			break
		}
	}
	if !replaced {
		file.Playbooks = append(file.Playbooks, draft)
	}
	if err := s.save(file); err != nil {
		return "", err
	}
	return draft.ID, nil
}

// Delete removes the draft with the given id. Deleting a missing draft is
// not an error.
func (s *DraftStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}
	kept := file.Playbooks[:0]
	for _, draft := range file.Playbooks {
		if draft.ID != id {
			kept = append(kept, draft)
		}
	}
	file.Playbooks = kept
	return s.save(file)
}
