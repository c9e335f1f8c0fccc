package dicom

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultExtension is the conventional DICOM file name suffix.
const DefaultExtension = ".dcm"

// FindDicomFiles lists the candidate files directly inside dir: regular files
// whose name ends in ext (exact, case-sensitive). Subdirectories are not
// searched. Paths come back sorted by file name so numbering is reproducible.
func FindDicomFiles(dir, ext string) ([]string, error) {
	if ext == "" {
		ext = DefaultExtension
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("could not list %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ext) {
			continue
		}
		names = append(names, name)
	}

	sort.Strings(names)

	files := make([]string, len(names))
	for i, name := range names {
		files[i] = filepath.Join(dir, name)
	}
	return files, nil
}

// OutputName is the de-identified file name for the candidate at position index.
func OutputName(index int, ext string) string {
	if ext == "" {
		ext = DefaultExtension
	}
	return fmt.Sprintf("Image_%05d%s", index, ext)
}
