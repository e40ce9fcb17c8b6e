package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSKVConfig configures the NATS KV store.
type NATSKVConfig struct {
	// URL of the NATS server. Defaults to nats.DefaultURL.
	URL string
	// Bucket holding root documents. Created if it does not exist.
	Bucket string
	// Key under which the document is stored. Derive one per server with
	// RootDocumentKey.
	Key string
	// TTL of stored documents; zero keeps them until cleared.
	TTL time.Duration
}

var invalidKeyChars = regexp.MustCompile(`[^-/_=.a-zA-Z0-9]+`)

// RootDocumentKey derives a KV key from a server URL.
func RootDocumentKey(serverURL string) string {
	return "root." + invalidKeyChars.ReplaceAllString(serverURL, "_")
}

// NATSKVStore shares the root document through JetStream key-value.
type NATSKVStore struct {
	conn *nats.Conn
	kv   jetstream.KeyValue
	key  string
}

// NewNATSKVStore connects to NATS and opens (or creates) the bucket.
func NewNATSKVStore(ctx context.Context, config *NATSKVConfig) (*NATSKVStore, error) {
	url := config.URL
	if url == "" {
		url = nats.DefaultURL
	}

	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	kv, err := js.KeyValue(ctx, config.Bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      config.Bucket,
			Description: "root documents",
			TTL:         config.TTL,
		})
	}

	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("opening KV bucket %s: %w", config.Bucket, err)
	}

	key := config.Key
	if key == "" {
		key = "root"
	}

	return NewNATSKVStoreFromKeyValue(kv, key, conn), nil
}

// NewNATSKVStoreFromKeyValue wraps an already opened bucket. conn may be nil
// when the caller owns the connection.
func NewNATSKVStoreFromKeyValue(kv jetstream.KeyValue, key string, conn *nats.Conn) *NATSKVStore {
	return &NATSKVStore{conn: conn, kv: kv, key: key}
}

// Load reads the stored document.
func (s *NATSKVStore) Load(ctx context.Context) (*RootDocument, error) {
	entry, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, ErrRootDocumentNotStored
	}

	if err != nil {
		return nil, fmt.Errorf("loading root document from KV: %w", err)
	}

	var doc RootDocument

	err = json.Unmarshal(entry.Value(), &doc)
	if err != nil {
		return nil, err
	}

	return &doc, nil
}

// Save stores the document.
func (s *NATSKVStore) Save(ctx context.Context, doc *RootDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding root document: %w", err)
	}

	_, err = s.kv.Put(ctx, s.key, data)
	if err != nil {
		return fmt.Errorf("storing root document in KV: %w", err)
	}

	return nil
}

// Clear deletes the stored document.
func (s *NATSKVStore) Clear(ctx context.Context) error {
	err := s.kv.Delete(ctx, s.key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("clearing root document in KV: %w", err)
	}

	return nil
}

// Close releases the NATS connection if the store owns it.
func (s *NATSKVStore) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}
