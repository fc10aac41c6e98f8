package progress

import (
	"context"

	"github.com/elecsonJ/everyday-english-writing/pkg/models"
	"go.uber.org/zap"
)

// Repository is the keyed SQL persistence used by DBStore
type Repository interface {
	Get(ctx context.Context, key string) (*models.UserProgress, error)
	Put(ctx context.Context, key string, p models.UserProgress) error
}

// DBStore keeps the record in the progress table under a fixed key
type DBStore struct {
	*durableStore
}

func NewDBStore(repo Repository, key string, log *zap.Logger) *DBStore {
	return &DBStore{newDurableStore(&repoBackend{repo: repo, key: key}, log)}
}

type repoBackend struct {
	repo Repository
	key  string
}

func (b *repoBackend) get(ctx context.Context) (*models.UserProgress, error) {
	return b.repo.Get(ctx, b.key)
}

func (b *repoBackend) put(ctx context.Context, p models.UserProgress) error {
	return b.repo.Put(ctx, b.key, p)
}

func (b *repoBackend) describe() string {
	return "database:" + b.key
}
