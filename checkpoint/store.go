package checkpoint

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/latsieve"
	"github.com/hupe1980/latsieve/blobstore"
)

// Save encodes snap, compresses it with c and writes it to store under name.
func Save(ctx context.Context, store blobstore.Store, name string, snap *latsieve.Snapshot, c Compression) error {
	text, err := Marshal(snap)
	if err != nil {
		return err
	}
	data, err := Compress(text, c)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, name, data); err != nil {
		return fmt.Errorf("checkpoint: save %s: %w", name, err)
	}
	return nil
}

// Load reads and decodes the checkpoint stored under name.
func Load(ctx context.Context, store blobstore.Store, name string) (*latsieve.Snapshot, error) {
	data, err := blobstore.ReadAll(ctx, store, name)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: load %s: %w", name, err)
	}
	text, _, err := Decompress(data)
	if err != nil {
		return nil, err
	}
	return Unmarshal(text)
}

// Name returns the blob name of the checkpoint with sequence number seq.
// Names sort in sequence order.
func Name(prefix string, seq uint64) string {
	return fmt.Sprintf("%s%020d.ckpt", prefix, seq)
}

// Latest returns the name of the newest checkpoint under prefix, as written
// with Name.
func Latest(ctx context.Context, store blobstore.Store, prefix string) (string, error) {
	names, err := store.List(ctx, prefix)
	if err != nil {
		return "", err
	}
	for i := len(names) - 1; i >= 0; i-- {
		if strings.HasSuffix(names[i], ".ckpt") {
			return names[i], nil
		}
	}
	return "", fmt.Errorf("checkpoint: none under %q: %w", prefix, blobstore.ErrNotFound)
}

// Prune deletes all but the newest keep checkpoints under prefix.
func Prune(ctx context.Context, store blobstore.Store, prefix string, keep int) error {
	names, err := store.List(ctx, prefix)
	if err != nil {
		return err
	}
	var ckpts []string
	for _, n := range names {
		if strings.HasSuffix(n, ".ckpt") {
			ckpts = append(ckpts, n)
		}
	}
	for len(ckpts) > keep {
		if err := store.Delete(ctx, ckpts[0]); err != nil {
			return err
		}
		ckpts = ckpts[1:]
	}
	return nil
}
