package playbook

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/entrhq/unlist/pkg/types"
)

// canonicalStep is the signed form of a step: alphabetical keys, absent
// strings encoded as null, and wait_after_ms always null so timing tweaks
// do not invalidate a signature.
type canonicalStep struct {
	Action      types.ActionKind `json:"action"`
	Description string           `json:"description"`
	Optional    bool             `json:"optional"`
	Position    uint             `json:"position"`
	ProfileKey  *string          `json:"profile_key"`
	Selector    *string          `json:"selector"`
	Value       *string          `json:"value"`
	WaitAfterMS interface{}      `json:"wait_after_ms"`
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CanonicalSteps returns the canonical JSON the catalog signs: steps sorted
// by position, each rendered as a canonicalStep.
func CanonicalSteps(steps []types.PlaybookStep) ([]byte, error) {
	sorted := make([]types.PlaybookStep, len(steps))
	copy(sorted, steps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	canonical := make([]canonicalStep, 0, len(sorted))
	for _, step := range sorted {
		canonical = append(canonical, canonicalStep{
			Action:      step.Action,
			Description: step.Description,
			Optional:    step.Optional,
			Position:    step.Position,
			ProfileKey:  nullable(step.ProfileKey),
			Selector:    nullable(step.Selector),
			Value:       nullable(step.Value),
		})
	}
	// The catalog signs unescaped JSON, so &, < and > must stay literal
	// rather than becoming & etc.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(canonical); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Verifier checks Ed25519 signatures on community playbooks.
type Verifier struct {
	publicKey ed25519.PublicKey
}

// NewVerifier creates a verifier from a base64-encoded Ed25519 public key.
func NewVerifier(publicKeyB64 string) (*Verifier, error) {
	raw, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil {
		return nil, fmt.Errorf("invalid public key encoding: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return &Verifier{publicKey: ed25519.PublicKey(raw)}, nil
}

// Verify checks the playbook's signature over the canonical step JSON.
// Local drafts carry no signature and must not be passed here.
func (v *Verifier) Verify(pb *types.Playbook) error {
	if pb.Signature == "" {
		return fmt.Errorf("community playbook is missing a signature")
	}
	sig, err := base64.StdEncoding.DecodeString(pb.Signature)
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("signature must be %d bytes, got %d", ed25519.SignatureSize, len(sig))
	}

	canonical, err := CanonicalSteps(pb.Steps)
	if err != nil {
		return fmt.Errorf("failed to build canonical steps: %w", err)
	}
	if !ed25519.Verify(v.publicKey, canonical, sig) {
		return fmt.Errorf("playbook signature verification failed")
	}
	return nil
}
