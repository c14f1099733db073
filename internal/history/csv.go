// Package history appends chat interactions to a CSV file.
package history

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"recommender/internal/domain"
)

var header = []string{"timestamp", "conversation_id", "user_prompt", "extracted_output"}

type extractedOutput struct {
	Tags    []string `json:"tags"`
	Matches []string `json:"matches"`
}

// CSVLog is an append-only interaction log. It is safe for concurrent use.
type CSVLog struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewCSVLog opens path for appending, writing the header when the file is new.
func NewCSVLog(path string) (*CSVLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	l := &CSVLog{path: path, now: time.Now}
	info, err := os.Stat(path)
	if err == nil && info.Size() > 0 {
		return l, nil
	}
	if err := l.append(header); err != nil {
		return nil, err
	}
	return l, nil
}

// Record appends one interaction.
func (l *CSVLog) Record(rec domain.HistoryRecord) error {
	out, err := json.Marshal(extractedOutput{Tags: nonNil(rec.Tags), Matches: nonNil(rec.Matches)})
	if err != nil {
		return fmt.Errorf("encode history output: %w", err)
	}
	return l.append([]string{
		l.now().Format(time.RFC3339),
		rec.ConversationID,
		rec.UserPrompt,
		string(out),
	})
}

func (l *CSVLog) append(row []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		_ = f.Close()
		return fmt.Errorf("write history: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush history: %w", err)
	}
	return f.Close()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
