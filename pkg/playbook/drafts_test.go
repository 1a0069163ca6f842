package playbook

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/unlist/pkg/types"
)

func testDraftStore(t *testing.T) *DraftStore {
	t.Helper()
	store, err := NewDraftStore(filepath.Join(t.TempDir(), "local_playbooks.json"))
	require.NoError(t, err)
	return store
}

func TestDraftStoreRoundtrip(t *testing.T) {
	store := testDraftStore(t)

	id, err := store.Upsert(Draft{
		BrokerID:   "spokeo",
		BrokerName: "Spokeo",
		Title:      "Spokeo opt-out",
		Steps:      validSteps(),
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	draft, err := store.Get(id)
	require.NoError(t, err)
	require.NotNil(t, draft)
	assert.Equal(t, "Spokeo", draft.BrokerName)
	assert.Len(t, draft.Steps, len(validSteps()))
	assert.NotEmpty(t, draft.CreatedAt)

	all, err := store.All()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDraftStoreUpsertUpdates(t *testing.T) {
	store := testDraftStore(t)

	id, err := store.Upsert(Draft{BrokerID: "spokeo", Title: "v1", Steps: validSteps()})
	require.NoError(t, err)

	draft, err := store.Get(id)
	require.NoError(t, err)
	draft.Title = "v2"
	updatedID, err := store.Upsert(*draft)
	require.NoError(t, err)
	assert.Equal(t, id, updatedID)

	all, err := store.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "v2", all[0].Title)
}

func TestDraftStoreRejectsInvalidSteps(t *testing.T) {
	store := testDraftStore(t)

	_, err := store.Upsert(Draft{
		BrokerID: "spokeo",
		Steps: []types.PlaybookStep{
			{Position: 1, Action: types.ActionNavigate, Value: "javascript:alert(1)"},
		},
	})
	require.Error(t, err)

	all, err := store.All()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDraftStoreDelete(t *testing.T) {
	store := testDraftStore(t)

	id, err := store.Upsert(Draft{BrokerID: "spokeo", Steps: validSteps()})
	require.NoError(t, err)

	require.NoError(t, store.Delete(id))
	draft, err := store.Get(id)
	require.NoError(t, err)
	assert.Nil(t, draft)

	// Deleting again is a no-op.
	assert.NoError(t, store.Delete(id))
}

func TestDraftPlaybookIsLocal(t *testing.T) {
	d := Draft{ID: "d-1", BrokerID: "spokeo", Steps: validSteps()}
	pb := d.Playbook()
	assert.True(t, pb.IsLocal())
	assert.Empty(t, pb.Signature)
}
