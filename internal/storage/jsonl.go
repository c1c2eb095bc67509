package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"bondwatch/internal/model"
)

// Archive records processed withdrawal events for operator inspection.
type Archive interface {
	Append(ev model.WithdrawalEvent) error
}

// JsonlArchive appends withdrawal events to a JSONL file.
type JsonlArchive struct {
	path string
	mu   sync.Mutex
}

func NewJsonlArchive(path string) *JsonlArchive {
	return &JsonlArchive{path: path}
}

// Append writes one event as a JSON line.
func (a *JsonlArchive) Append(ev model.WithdrawalEvent) error {
	dir := filepath.Dir(a.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create archive dir: %w", err)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	file, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open archive file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal withdrawal event: %w", err)
	}
	if _, err := writer.Write(line); err != nil {
		return fmt.Errorf("write withdrawal event: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush archive: %w", err)
	}

	return nil
}
