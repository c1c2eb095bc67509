package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type cursorFile struct {
	Cursor    string `json:"cursor"`
	UpdatedAt string `json:"updated_at"`
}

// FileCursorStore persists the poller cursor to a JSON file with an atomic
// rename, so a crash mid-write never leaves a torn cursor behind.
type FileCursorStore struct {
	path string
}

func NewFileCursorStore(path string) *FileCursorStore {
	return &FileCursorStore{path: path}
}

func (s *FileCursorStore) Load(_ context.Context) (string, bool, error) {
	stat, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("stat cursor file: %w", err)
	}
	if stat.IsDir() {
		return "", false, fmt.Errorf("cursor path is a directory")
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", false, fmt.Errorf("read cursor file: %w", err)
	}

	var cf cursorFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return "", false, fmt.Errorf("parse cursor file: %w", err)
	}

	return cf.Cursor, true, nil
}

func (s *FileCursorStore) Save(_ context.Context, cursor string) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cursor dir: %w", err)
		}
	}

	cf := cursorFile{
		Cursor:    cursor,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(cf)
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write cursor tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename cursor file: %w", err)
	}

	return nil
}
