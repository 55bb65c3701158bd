package repository

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

// KV is a minimal byte-oriented key/value store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// getJSON loads key into dst.  A value that does not decode is deleted and
// reported as ErrCorrupt.
func getJSON(ctx context.Context, kv KV, key string, dst any) error {
	raw, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		_ = kv.Delete(ctx, key)
		return errors.Wrapf(ErrCorrupt, "decode %s: %v", key, err)
	}
	return nil
}

func setJSON(ctx context.Context, kv KV, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	return kv.Set(ctx, key, raw)
}
