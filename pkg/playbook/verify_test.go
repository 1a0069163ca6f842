package playbook

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/unlist/pkg/types"
)

func signedPlaybook(t *testing.T) (*types.Playbook, *Verifier) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	pb := &types.Playbook{
		ID:    "pb-1",
		Steps: validSteps(),
	}
	canonical, err := CanonicalSteps(pb.Steps)
	require.NoError(t, err)
	pb.Signature = base64.StdEncoding.EncodeToString(ed25519.Sign(priv, canonical))

	verifier, err := NewVerifier(base64.StdEncoding.EncodeToString(pub))
	require.NoError(t, err)
	return pb, verifier
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	pb, verifier := signedPlaybook(t)
	assert.NoError(t, verifier.Verify(pb))
}

func TestVerifyRejectsMissingSignature(t *testing.T) {
	pb, verifier := signedPlaybook(t)
	pb.Signature = ""
	assert.Error(t, verifier.Verify(pb))
}

func TestVerifyRejectsTamperedSteps(t *testing.T) {
	pb, verifier := signedPlaybook(t)
	pb.Steps[0].Value = "https://evil.example.com"
	assert.Error(t, verifier.Verify(pb))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	pb, _ := signedPlaybook(t)
	otherPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	verifier, err := NewVerifier(base64.StdEncoding.EncodeToString(otherPub))
	require.NoError(t, err)
	assert.Error(t, verifier.Verify(pb))
}

func TestNewVerifierRejectsBadKey(t *testing.T) {
	_, err := NewVerifier("not-base64!")
	assert.Error(t, err)

	_, err = NewVerifier(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}

func TestCanonicalStepsIgnoresTimingAndOrder(t *testing.T) {
	steps := validSteps()

	// Reorder and retime a copy; the canonical form must be identical.
	shuffled := make([]types.PlaybookStep, len(steps))
	copy(shuffled, steps)
	shuffled[0], shuffled[len(shuffled)-1] = shuffled[len(shuffled)-1], shuffled[0]
	for i := range shuffled {
		shuffled[i].WaitAfterMS = 9999
	}

	a, err := CanonicalSteps(steps)
	require.NoError(t, err)
	b, err := CanonicalSteps(shuffled)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestCanonicalStepsKeepHTMLCharactersLiteral(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	pb := &types.Playbook{
		ID: "pb-amp",
		Steps: []types.PlaybookStep{
			{Position: 1, Action: types.ActionClick, Selector: "a[href='/terms']", Description: "Accept the Terms & Conditions"},
		},
	}
	canonical, err := CanonicalSteps(pb.Steps)
	require.NoError(t, err)
	assert.Contains(t, string(canonical), "Terms & Conditions")
	assert.NotContains(t, string(canonical), `\u0026`)
	assert.NotRegexp(t, `\n$`, string(canonical))

	pb.Signature = base64.StdEncoding.EncodeToString(ed25519.Sign(priv, canonical))
	verifier, err := NewVerifier(base64.StdEncoding.EncodeToString(pub))
	require.NoError(t, err)
	assert.NoError(t, verifier.Verify(pb))
}

func TestCanonicalStepsShape(t *testing.T) {
	canonical, err := CanonicalSteps([]types.PlaybookStep{
		{Position: 1, Action: types.ActionClick, Selector: "#go", Description: "Click go", WaitAfterMS: 500},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[{
		"action": "click",
		"description": "Click go",
		"optional": false,
		"position": 1,
		"profile_key": null,
		"selector": "#go",
		"value": null,
		"wait_after_ms": null
	}]`, string(canonical))
}
