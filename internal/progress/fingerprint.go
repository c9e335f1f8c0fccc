package progress

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/minio/highwayhash"
)

// fingerprintKey is fixed so fingerprints are comparable across runs.
var fingerprintKey = []byte("dicom-deidentifier-source-check!")

// Fingerprint hashes the full content of a file with HighwayHash-128.
func Fingerprint(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("could not open file: %w", baseNameErr(err))
	}
	defer file.Close()

	h, err := highwayhash.New128(fingerprintKey)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("could not read file: %w", baseNameErr(err))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FingerprintDir fingerprints every regular file directly inside dir, keyed by name.
func FingerprintDir(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		fp, err := Fingerprint(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		out[entry.Name()] = fp
	}
	return out, nil
}

func baseNameErr(err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return &fs.PathError{Op: pathErr.Op, Path: filepath.Base(pathErr.Path), Err: pathErr.Err}
	}
	return err
}
