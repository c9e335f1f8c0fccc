package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileStatus represents the processing status of a file
type FileStatus string

const (
	StatusSuccess FileStatus = "success"
	StatusSkipped FileStatus = "skipped"
	StatusFailed  FileStatus = "failed"
)

// FileEntry is the manifest record for one source file.
type FileEntry struct {
	Status      FileStatus `json:"status"`
	Class       string     `json:"class,omitempty"`
	Fingerprint string     `json:"fingerprint,omitempty"`
	Output      string     `json:"output,omitempty"`
	Kind        string     `json:"kind,omitempty"`
	Error       string     `json:"error,omitempty"`
	Timestamp   string     `json:"timestamp"`
}

// ManifestData is the JSON structure written to disk.
type ManifestData struct {
	Modality string                `json:"modality"`
	Files    map[string]*FileEntry `json:"files"`
	Updated  string                `json:"updated"`
	Summary  struct {
		Success int `json:"success"`
		Skipped int `json:"skipped"`
		Failed  int `json:"failed"`
		Total   int `json:"total"`
	} `json:"summary"`
}

// Manifest records the outcome of every candidate file of a run. It never
// holds original identifiers, only file names, outcomes and fingerprints.
type Manifest struct {
	mu       sync.Mutex
	path     string
	modality string
	files    map[string]*FileEntry
}

// NewManifest creates an empty manifest that Save writes to path.
func NewManifest(path, modality string) *Manifest {
	return &Manifest{
		path:     path,
		modality: modality,
		files:    make(map[string]*FileEntry),
	}
}

// Record stores the entry for a source file name, stamping it with the current time.
func (m *Manifest) Record(name string, entry FileEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.Timestamp = time.Now().Format(time.RFC3339)
	m.files[name] = &entry
}

// Entry returns the recorded entry for a source file name.
func (m *Manifest) Entry(name string) (FileEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.files[name]
	if !ok {
		return FileEntry{}, false
	}
	return *e, true
}

// Names returns the recorded source file names in sorted order.
func (m *Manifest) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Save writes the manifest as indented JSON.
func (m *Manifest) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data := ManifestData{
		Modality: m.modality,
		Files:    m.files,
		Updated:  time.Now().Format(time.RFC3339),
	}
	data.Summary.Success = m.countStatus(StatusSuccess)
	data.Summary.Skipped = m.countStatus(StatusSkipped)
	data.Summary.Failed = m.countStatus(StatusFailed)
	data.Summary.Total = len(m.files)

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal manifest: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("could not create manifest directory: %w", err)
	}
	if err := os.WriteFile(m.path, raw, 0644); err != nil {
		return fmt.Errorf("could not write manifest: %w", err)
	}
	return nil
}

// LoadManifest reads a manifest written by Save.
func LoadManifest(path string) (*ManifestData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var data ManifestData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("could not parse manifest: %w", err)
	}
	if data.Files == nil {
		data.Files = make(map[string]*FileEntry)
	}
	return &data, nil
}

func (m *Manifest) countStatus(status FileStatus) int {
	count := 0
	for _, entry := range m.files {
		if entry.Status == status {
			count++
		}
	}
	return count
}
