package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/jengzang/run-uniqueness/internal/logging"
	"github.com/jengzang/run-uniqueness/internal/models"
)

const uniquenessKey = "uniqueness"

// FileStore reads activity records from a directory of JSON files, one record
// per file, and merges uniqueness results back into them.
//
// A record looks like {"activity": {...}, ...}; every key other than
// "uniqueness" is preserved on write.
type FileStore struct {
	dir string

	mu    sync.Mutex
	paths map[string]string // activity id -> file path
}

// NewFileStore creates a store over dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir, paths: make(map[string]string)}
}

// Dir returns the directory the store reads from
func (s *FileStore) Dir() string {
	return s.dir
}

// List returns the activity of every *.json record in the directory, ordered by
// file name. A record without an id takes the file stem as its id. Files that
// are not valid records are logged and skipped, as are later files that
// repeat an id already listed.
func (s *FileStore) List(ctx context.Context) ([]models.Activity, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list activity files: %w", err)
	}
	sort.Strings(matches)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.paths = make(map[string]string, len(matches))
	activities := make([]models.Activity, 0, len(matches))
	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		activity, err := readActivityFile(path)
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("skipping unreadable activity record")
			continue
		}
		if activity.ID == "" {
			activity.ID = models.ActivityID(fileStem(path))
		}

		id := activity.ID.String()
		if first, ok := s.paths[id]; ok && first != path {
			logging.Warn().Str("activity_id", id).Str("path", path).Str("kept", first).Msg("duplicate activity id, keeping first")
			continue
		}
		s.paths[id] = path
		activities = append(activities, *activity)
	}

	return activities, nil
}

// SaveUniqueness merges u into the record of the given activity under the
// "uniqueness" key and rewrites the file atomically with 2-space indentation.
func (s *FileStore) SaveUniqueness(ctx context.Context, activityID string, u models.Uniqueness) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := s.pathFor(activityID)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("activity record %s: %w", activityID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read activity record: %w", err)
	}

	var record map[string]json.RawMessage
	if err := json.Unmarshal(data, &record); err != nil {
		return fmt.Errorf("failed to parse activity record %s: %w", path, err)
	}
	if record == nil {
		record = make(map[string]json.RawMessage)
	}

	encoded, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to serialize uniqueness: %w", err)
	}
	record[uniquenessKey] = encoded

	out, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize activity record: %w", err)
	}

	return writeFileAtomic(path, out)
}

func (s *FileStore) pathFor(activityID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if path, ok := s.paths[activityID]; ok {
		return path
	}
	return filepath.Join(s.dir, activityID+".json")
}

// LoadHistory reads a JSON array of activity records, the
// strava_activities.json export, and returns their activities.
func LoadHistory(path string) ([]models.Activity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse history file %s: %w", path, err)
	}

	activities := make([]models.Activity, 0, len(records))
	for i, raw := range records {
		activity, err := models.ParseRecord(raw)
		if err != nil {
			logging.Warn().Err(err).Int("index", i).Str("path", path).Msg("skipping invalid history record")
			continue
		}
		activities = append(activities, *activity)
	}

	return activities, nil
}

func readActivityFile(path string) (*models.Activity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return models.ParseRecord(data)
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".record-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace activity record: %w", err)
	}
	return nil
}
