package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nextlevelbuilder/agentloop/internal/store"
)

// LogSink appends execution logs to a JSON-lines file.
type LogSink struct {
	mu   sync.Mutex
	path string
}

func NewLogSink(path string) *LogSink {
	return &LogSink{path: path}
}

func (s *LogSink) Record(_ context.Context, entry *store.ExecutionLog) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal execution log: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open execution log: %w", err)
	}
	defer f.Close()
	_, err = f.Write(append(line, '\n'))
	return err
}
