package history

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"recommender/internal/domain"
)

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return rows
}

func TestCSVLog_Record(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "history.csv")
	l, err := NewCSVLog(path)
	if err != nil {
		t.Fatalf("NewCSVLog: %v", err)
	}
	l.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	err = l.Record(domain.HistoryRecord{
		ConversationID: "c1",
		UserPrompt:     "for my \"chill\", artsy friend",
		Tags:           []string{"woody"},
		Matches:        []string{"Campfire"},
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Record(domain.HistoryRecord{ConversationID: "c1", UserPrompt: "hi"}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	rows := readRows(t, path)
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "timestamp" || rows[0][3] != "extracted_output" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "2026-03-01T12:00:00Z" || rows[1][2] != "for my \"chill\", artsy friend" {
		t.Errorf("row = %v", rows[1])
	}
	if rows[1][3] != `{"tags":["woody"],"matches":["Campfire"]}` {
		t.Errorf("extracted_output = %s", rows[1][3])
	}
	if rows[2][3] != `{"tags":[],"matches":[]}` {
		t.Errorf("empty output = %s", rows[2][3])
	}
}

func TestCSVLog_ReopenKeepsSingleHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.csv")
	for i := 0; i < 2; i++ {
		l, err := NewCSVLog(path)
		if err != nil {
			t.Fatalf("NewCSVLog: %v", err)
		}
		if err := l.Record(domain.HistoryRecord{UserPrompt: "x"}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if rows := readRows(t, path); len(rows) != 3 {
		t.Errorf("expected 3 rows, got %d", len(rows))
	}
}

func TestCSVLog_ConcurrentRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.csv")
	l, err := NewCSVLog(path)
	if err != nil {
		t.Fatalf("NewCSVLog: %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Record(domain.HistoryRecord{UserPrompt: "concurrent"}); err != nil {
				t.Errorf("Record: %v", err)
			}
		}()
	}
	wg.Wait()
	if rows := readRows(t, path); len(rows) != 21 {
		t.Errorf("expected 21 rows, got %d", len(rows))
	}
}
