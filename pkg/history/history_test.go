package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/unlist/pkg/registry"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func record(id, brokerID string, status SubmissionStatus, submittedAt time.Time) Record {
	return Record{ID: id, BrokerID: brokerID, Status: status, SubmittedAt: submittedAt, RunID: "run-1"}
}

func TestStoreUpsertAndQuery(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.Upsert(record("a", "spokeo", StatusSubmitted, now)))
	require.NoError(t, s.Upsert(record("b", "whitepages", StatusFailed, now)))

	all, err := s.All()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byBroker, err := s.ByBroker("spokeo")
	require.NoError(t, err)
	require.Len(t, byBroker, 1)
	assert.Equal(t, "a", byBroker[0].ID)

	// Upsert with the same id replaces in place.
	updated := record("a", "spokeo", StatusConfirmed, now)
	require.NoError(t, s.Upsert(updated))
	all, err = s.All()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStoreEmptyWhenFileAbsent(t *testing.T) {
	s := newTestStore(t)
	all, err := s.All()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestLatestPerBroker(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Upsert(record("old", "spokeo", StatusFailed, base)))
	require.NoError(t, s.Upsert(record("new", "spokeo", StatusSubmitted, base.AddDate(0, 0, 5))))
	require.NoError(t, s.Upsert(record("only", "whitepages", StatusSubmitted, base)))

	latest, err := s.LatestPerBroker()
	require.NoError(t, err)
	require.Len(t, latest, 2)

	byID := make(map[string]Record)
	for _, r := range latest {
		byID[r.BrokerID] = r
	}
	assert.Equal(t, "new", byID["spokeo"].ID)
	assert.Equal(t, "only", byID["whitepages"].ID)
}

func TestDueForRecheck(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	past := now.AddDate(0, 0, -1)
	future := now.AddDate(0, 0, 30)

	due := record("due", "spokeo", StatusSubmitted, now.AddDate(0, -3, 0))
	due.NextCheckDate = &past
	notYet := record("later", "whitepages", StatusSubmitted, now.AddDate(0, -1, 0))
	notYet.NextCheckDate = &future
	noWindow := record("none", "beenverified", StatusSubmitted, now.AddDate(0, -1, 0))

	require.NoError(t, s.Upsert(due))
	require.NoError(t, s.Upsert(notYet))
	require.NoError(t, s.Upsert(noWindow))

	got, err := s.DueForRecheck(now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "due", got[0].ID)
}

func TestRecordSuccessStatuses(t *testing.T) {
	s := newTestStore(t)

	plain := registry.Broker{ID: "spokeo", Name: "Spokeo"}
	verified := registry.Broker{ID: "whitepages", Name: "Whitepages", RequiresVerification: "email", RelistDays: 90}

	require.NoError(t, s.RecordSuccess(plain, "run-1"))
	require.NoError(t, s.RecordSuccess(verified, "run-1"))

	plainRecs, err := s.ByBroker("spokeo")
	require.NoError(t, err)
	require.Len(t, plainRecs, 1)
	assert.Equal(t, StatusSubmitted, plainRecs[0].Status)
	assert.Nil(t, plainRecs[0].NextCheckDate)

	verifiedRecs, err := s.ByBroker("whitepages")
	require.NoError(t, err)
	require.Len(t, verifiedRecs, 1)
	assert.Equal(t, StatusPendingVerification, verifiedRecs[0].Status)
	require.NotNil(t, verifiedRecs[0].NextCheckDate)
	wantCheck := verifiedRecs[0].SubmittedAt.AddDate(0, 0, 90)
	assert.Equal(t, wantCheck, *verifiedRecs[0].NextCheckDate)
}

func TestRecordFailureKeepsMessage(t *testing.T) {
	s := newTestStore(t)
	broker := registry.Broker{ID: "spokeo", Name: "Spokeo"}

	require.NoError(t, s.RecordFailure(broker, "run-1", "Aborted by user"))

	recs, err := s.ByBroker("spokeo")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, StatusFailed, recs[0].Status)
	assert.Equal(t, "Aborted by user", recs[0].ErrorMessage)
	assert.Equal(t, "run-1", recs[0].RunID)
}

func TestConfirm(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	require.NoError(t, s.Upsert(record("a", "spokeo", StatusPendingVerification, now)))

	at := now.Add(time.Hour)
	require.NoError(t, s.Confirm("a", at))

	recs, err := s.ByBroker("spokeo")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, StatusConfirmed, recs[0].Status)
	require.NotNil(t, recs[0].ConfirmedAt)
	assert.True(t, recs[0].ConfirmedAt.Equal(at))

	assert.Error(t, s.Confirm("missing", at))
}
