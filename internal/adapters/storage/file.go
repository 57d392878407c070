// Package storage persists the session resume record on the local disk,
// one JSON file per fixed key.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/CosmosZhu/eEducation/internal/core"
)

const (
	roomKey     = "edu_room"
	languageKey = "edu_language"
)

// FileStorage implements core.SnapshotStorage under a base directory.
type FileStorage struct {
	dir string
}

func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

func (f *FileStorage) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

func (f *FileStorage) save(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return os.WriteFile(f.path(key), data, 0o644)
}

func (f *FileStorage) load(key string, v any) (bool, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (f *FileStorage) SaveRoom(rec core.RoomRecord) error {
	return f.save(roomKey, rec)
}

func (f *FileStorage) LoadRoom() (core.RoomRecord, bool, error) {
	var rec core.RoomRecord
	ok, err := f.load(roomKey, &rec)
	return rec, ok, err
}

func (f *FileStorage) SaveLanguage(lang string) error {
	return f.save(languageKey, lang)
}

func (f *FileStorage) LoadLanguage() (string, bool, error) {
	var lang string
	ok, err := f.load(languageKey, &lang)
	return lang, ok, err
}

// Clear removes both records; a missing file is not an error.
func (f *FileStorage) Clear() error {
	for _, key := range []string{roomKey, languageKey} {
		if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}
