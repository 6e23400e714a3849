package util

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// JSONManager reads and writes one JSON document on disk.
type JSONManager struct {
	filePath    string
	projectRoot string // Optional: for safe saving
	indent      string
	mu          sync.RWMutex
}

// NewJSONManager creates a new JSONManager writing with four-space indentation.
func NewJSONManager(filePath string) *JSONManager {
	return &JSONManager{
		filePath: filePath,
		indent:   "    ",
	}
}

// WithProjectRoot restricts saving to directories below projectRoot.
func (m *JSONManager) WithProjectRoot(projectRoot string) *JSONManager {
	m.projectRoot = projectRoot
	return m
}

// Path returns the managed file path.
func (m *JSONManager) Path() string {
	return m.filePath
}

// Exists reports whether the file is present.
func (m *JSONManager) Exists() bool {
	info, err := os.Stat(m.filePath)
	return err == nil && !info.IsDir()
}

// Load reads the JSON file into data. A missing file leaves data untouched.
func (m *JSONManager) Load(data any) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fileData, err := os.ReadFile(m.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read file: %w", err)
	}

	if err := json.Unmarshal(fileData, data); err != nil {
		return fmt.Errorf("failed to unmarshal json: %w", err)
	}

	return nil
}

// Save writes data through a temporary file and renames it into place.
func (m *JSONManager) Save(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fileData, err := json.MarshalIndent(data, "", m.indent)
	if err != nil {
		return fmt.Errorf("failed to marshal json: %w", err)
	}

	dir := filepath.Dir(m.filePath)
	if m.projectRoot != "" {
		if _, err := safeJoin(m.projectRoot, dir); err != nil {
			return fmt.Errorf("failed to resolve safe directory: %w", err)
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(m.filePath)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(fileData); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmpName, m.filePath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace file: %w", err)
	}
	return nil
}

// safeJoin ensures that the joined path is within the base directory.
func safeJoin(baseDir, relPath string) (string, error) {
	cleanBase := filepath.Clean(baseDir)
	cleanPath := relPath
	if !filepath.IsAbs(relPath) {
		cleanPath = filepath.Join(cleanBase, relPath)
	}
	rel, err := filepath.Rel(cleanBase, filepath.Clean(cleanPath))
	if err != nil || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return "", fmt.Errorf("invalid path: %s", relPath)
	}
	return cleanPath, nil
}
