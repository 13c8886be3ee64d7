package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

const timestampLayout = "15-04_02-01-2006"

// JSONSaver writes crawl results into timestamped files under one directory.
type JSONSaver struct {
	dir string
	now func() time.Time
}

func NewJSONSaver(dir string) *JSONSaver {
	return &JSONSaver{dir: dir, now: time.Now}
}

// Save writes v as <dir>/<name>_<HH-MM_DD-MM-YYYY>.json and returns the file path.
func (s *JSONSaver) Save(name string, v any) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("%s_%s.json", name, s.now().Format(timestampLayout)))

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	log.Infof("💾 Saved results to %s", path)
	return path, nil
}
