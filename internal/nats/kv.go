package nats

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// KVTier is a durable checkpoint tier backed by a JetStream key-value
// bucket, keyed by thread id.
type KVTier struct {
	kv jetstream.KeyValue
}

// NewKVTier opens bucket, creating it when absent.
func NewKVTier(ctx context.Context, client *Client, bucket string) (*KVTier, error) {
	js := client.JetStream()

	kv, err := js.KeyValue(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: "conversation checkpoints keyed by thread id",
			History:     1,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("open kv bucket %q: %w", bucket, err)
	}

	return &KVTier{kv: kv}, nil
}

// Load returns the blob for threadID, or (nil, nil) when absent.
func (t *KVTier) Load(ctx context.Context, threadID string) ([]byte, error) {
	entry, err := t.kv.Get(ctx, threadID)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kv get %q: %w", threadID, err)
	}
	return entry.Value(), nil
}

// Save writes the blob for threadID.
func (t *KVTier) Save(ctx context.Context, threadID string, blob []byte) error {
	if _, err := t.kv.Put(ctx, threadID, blob); err != nil {
		return fmt.Errorf("kv put %q: %w", threadID, err)
	}
	return nil
}

// Delete removes threadID; absent keys are a no-op.
func (t *KVTier) Delete(ctx context.Context, threadID string) error {
	err := t.kv.Delete(ctx, threadID)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("kv delete %q: %w", threadID, err)
	}
	return nil
}
