// Package identity issues the DICOM UIDs that replace the originals during de-identification.
package identity

import (
	"fmt"

	"github.com/google/uuid"
)

// UUIDRoot is the ISO/IEC 9834-8 arc for UIDs derived from a UUID.
const UUIDRoot = "2.25."

// minSuffixDigits keeps at least ~80 bits of entropy after an organization root.
const minSuffixDigits = 24

// Generator produces process-wide unique UIDs. It is safe for concurrent use.
type Generator struct {
	root string
}

// RunIdentifiers are drawn once per run and shared by every record in it.
type RunIdentifiers struct {
	Study     string
	Equipment string
}

// FileIdentifiers are drawn for a single record and never reused.
type FileIdentifiers struct {
	Instance         string
	FrameOfReference string
}

// NewGenerator returns a generator. An empty root yields 2.25.<uuid> UIDs;
// otherwise root must be a dot-terminated organization prefix.
func NewGenerator(root string) (*Generator, error) {
	if root != "" && !IsValidRoot(root) {
		return nil, fmt.Errorf("invalid UID root %q: must be numeric components ending in '.', at most %d characters",
			root, MaxUIDLength-minSuffixDigits)
	}
	return &Generator{root: root}, nil
}

// New returns a fresh UID.
func (g *Generator) New() string {
	u := uuid.New()
	if g.root == "" {
		return UUIDRoot + uuidDecimal(u)
	}

	suffix := hashDecimal(u[:])
	if limit := MaxUIDLength - len(g.root); len(suffix) > limit {
		suffix = suffix[:limit]
	}
	return g.root + suffix
}

// NewRunIdentifiers draws the study and equipment identifiers for one run.
func (g *Generator) NewRunIdentifiers() RunIdentifiers {
	return RunIdentifiers{
		Study:     g.New(),
		Equipment: g.New(),
	}
}

// NewFileIdentifiers draws the per-record instance and frame of reference identifiers.
func (g *Generator) NewFileIdentifiers() FileIdentifiers {
	return FileIdentifiers{
		Instance:         g.New(),
		FrameOfReference: g.New(),
	}
}
