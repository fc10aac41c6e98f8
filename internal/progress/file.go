package progress

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/elecsonJ/everyday-english-writing/pkg/models"
	"go.uber.org/zap"
)

// FileStore keeps the record as an indented JSON file, one file per key
type FileStore struct {
	*durableStore
}

func NewFileStore(dir, key string, log *zap.Logger) *FileStore {
	return &FileStore{newDurableStore(&fileBackend{path: filePath(dir, key)}, log)}
}

func filePath(dir, key string) string {
	name := strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(key)
	return filepath.Join(dir, name+".json")
}

type fileBackend struct {
	path string
}

func (b *fileBackend) get(_ context.Context) (*models.UserProgress, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var p models.UserProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (b *fileBackend) put(_ context.Context, p models.UserProgress) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(b.path, data, 0o644)
}

func (b *fileBackend) describe() string {
	return "file:" + b.path
}
