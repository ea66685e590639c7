package classifier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stressvision/internal/config"

	"github.com/go-redis/redis/v8"
)

// ErrModelNotFound is returned when no artifact exists at the configured location
var ErrModelNotFound = errors.New("trained model not found")

// Store persists the serialized model artifact
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, blob []byte) error
	String() string
}

// FileStore keeps the artifact on local disk
type FileStore struct {
	Path string
}

// NewFileStore creates a store for the artifact at path
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Load(_ context.Context) ([]byte, error) {
	blob, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s, run the train command first", ErrModelNotFound, s.Path)
		}
		return nil, fmt.Errorf("failed to read model file %s: %w", s.Path, err)
	}
	return blob, nil
}

// Save writes through a temp file and rename so readers never see a partial artifact
func (s *FileStore) Save(_ context.Context, blob []byte) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create model directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".model-*")
	if err != nil {
		return fmt.Errorf("failed to create temp model file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp model file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("failed to move model into place: %w", err)
	}
	return nil
}

func (s *FileStore) String() string {
	return "file:" + s.Path
}

// redisClient is the subset of *redis.Client the store needs
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisStore keeps the artifact under a single Redis key so several serving
// replicas can share one trained model
type RedisStore struct {
	client redisClient
	key    string
}

// NewRedisStore creates a store backed by client under key
func NewRedisStore(client redisClient, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Load(ctx context.Context) ([]byte, error) {
	blob, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w at redis key %s, run the train command first", ErrModelNotFound, s.key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model from redis key %s: %w", s.key, err)
	}
	return blob, nil
}

func (s *RedisStore) Save(ctx context.Context, blob []byte) error {
	if err := s.client.Set(ctx, s.key, blob, 0).Err(); err != nil {
		return fmt.Errorf("failed to write model to redis key %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) String() string {
	return "redis:" + s.key
}

// OpenStore builds the store selected by the model config. The returned
// closer releases any client the store opened.
func OpenStore(mc config.ModelConfig, rc config.RedisConfig) (Store, func() error, error) {
	switch mc.Store {
	case "", "file":
		return NewFileStore(mc.Path), func() error { return nil }, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})
		return NewRedisStore(client, mc.RedisKey), client.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown model store %q", mc.Store)
}
