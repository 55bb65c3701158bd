package repository

import (
	"context"

	"github.com/iliyamo/classsync/internal/model"
)

// IdentityKey is the storage key of the signed-in identity.
const IdentityKey = "cs_identity"

// IdentityRepo persists the identity between gateway restarts.
type IdentityRepo struct{ KV KV }

func NewIdentityRepo(kv KV) *IdentityRepo { return &IdentityRepo{KV: kv} }

// Load returns the stored identity or ErrNotFound.
func (r *IdentityRepo) Load(ctx context.Context) (model.Identity, error) {
	var id model.Identity
	if err := getJSON(ctx, r.KV, IdentityKey, &id); err != nil {
		return model.Identity{}, err
	}
	return id, nil
}

func (r *IdentityRepo) Save(ctx context.Context, id model.Identity) error {
	return setJSON(ctx, r.KV, IdentityKey, id)
}

// Clear removes the stored identity.  Clearing an empty store is not an error.
func (r *IdentityRepo) Clear(ctx context.Context) error {
	return r.KV.Delete(ctx, IdentityKey)
}
