package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/entrhq/unlist/pkg/playbook"
	"github.com/entrhq/unlist/pkg/registry"
	"github.com/entrhq/unlist/pkg/types"
)

// SelectionBest picks the highest-ranked approved catalog playbook for the
// broker. It is the default when a worklist entry has no explicit selection.
const SelectionBest = "best"

// localSelectionPrefix marks a selection that names a local draft.
const localSelectionPrefix = "local:"

// Resolver turns a (broker, selection) pair into a runnable playbook.
type Resolver interface {
	Resolve(ctx context.Context, broker registry.Broker, selection string) (*types.Playbook, error)
}

// CatalogSource is the slice of the catalog client the resolver uses.
type CatalogSource interface {
	FetchBest(ctx context.Context, brokerID string) (*types.Playbook, error)
	FetchDetail(ctx context.Context, playbookID string) (*types.Playbook, error)
}

// DraftSource is the slice of the draft store the resolver uses.
type DraftSource interface {
	Get(id string) (*playbook.Draft, error)
}

// PlaybookResolver resolves selections against the community catalog and
// the local draft store. Catalog playbooks must carry a valid signature and
// pass validation before they are handed to the executor; local drafts skip
// the signature check but are still validated.
type PlaybookResolver struct {
	catalog  CatalogSource
	drafts   DraftSource
	verifier *playbook.Verifier
}

// NewPlaybookResolver builds a resolver. catalog may be nil for offline use
// (only local selections resolve), and verifier may be nil to skip
// signature checks when no trust root is configured.
func NewPlaybookResolver(catalog CatalogSource, drafts DraftSource, verifier *playbook.Verifier) *PlaybookResolver {
	return &PlaybookResolver{catalog: catalog, drafts: drafts, verifier: verifier}
}

// Resolve implements Resolver. An empty selection means SelectionBest.
func (r *PlaybookResolver) Resolve(ctx context.Context, broker registry.Broker, selection string) (*types.Playbook, error) {
	if selection == "" {
		selection = SelectionBest
	}

	if strings.HasPrefix(selection, localSelectionPrefix) {
		return r.resolveLocal(strings.TrimPrefix(selection, localSelectionPrefix))
	}

	if r.catalog == nil {
		return nil, fmt.Errorf("no catalog configured and selection %q for %s is not local", selection, broker.Name)
	}

	var (
		pb  *types.Playbook
		err error
	)
	if selection == SelectionBest {
		pb, err = r.catalog.FetchBest(ctx, broker.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch playbook for %s: %w", broker.Name, err)
		}
		if pb == nil {
			return nil, fmt.Errorf("no approved playbook available for %s", broker.Name)
		}
	} else {
		pb, err = r.catalog.FetchDetail(ctx, selection)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch playbook %s: %w", selection, err)
		}
	}

	if r.verifier != nil {
		if err := r.verifier.Verify(pb); err != nil {
			return nil, fmt.Errorf("playbook %s failed signature verification: %w", pb.ID, err)
		}
	}
	if err := playbook.Validate(pb.Steps); err != nil {
		return nil, fmt.Errorf("playbook %s failed validation: %w", pb.ID, err)
	}
	return pb, nil
}

func (r *PlaybookResolver) resolveLocal(id string) (*types.Playbook, error) {
	if r.drafts == nil {
		return nil, fmt.Errorf("no draft store configured for local playbook %s", id)
	}
	draft, err := r.drafts.Get(id)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, fmt.Errorf("local playbook %s not found", id)
	}
	pb := draft.Playbook()
	if err := playbook.Validate(pb.Steps); err != nil {
		return nil, fmt.Errorf("local playbook %s failed validation: %w", id, err)
	}
	return pb, nil
}
