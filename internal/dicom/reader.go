package dicom

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

var (
	// ErrTagNotFound is returned when an operation requires a tag the record does not carry.
	ErrTagNotFound = errors.New("tag not found")
	// ErrEmptySequence is returned when a sequence has no item at the requested index.
	ErrEmptySequence = errors.New("sequence has no such item")
	// ErrNotSequence is returned when a nested lookup targets a non-sequence element.
	ErrNotSequence = errors.New("element is not a sequence")
)

// Dataset wraps a DICOM dataset for tag-level access.
//
// A Dataset returned by Item shares its elements with the parent record, so
// value edits made through it land in the parent. Structural edits (Put of a
// new tag, Delete) on an item view are not reflected in the parent.
type Dataset struct {
	Data     dicom.Dataset
	FilePath string
}

// ReadDicom reads a DICOM file and returns the dataset.
func ReadDicom(path string) (*Dataset, error) {
	return parseFile(path)
}

// ReadDicomMetadataOnly reads only the metadata (no pixel data).
func ReadDicomMetadataOnly(path string) (*Dataset, error) {
	return parseFile(path, dicom.SkipPixelData())
}

func parseFile(path string, opts ...dicom.ParseOption) (ds *Dataset, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", baseNameErr(err))
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("could not stat file: %w", baseNameErr(err))
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", filepath.Base(path))
	}

	// The parser panics on some truncated inputs.
	defer func() {
		if r := recover(); r != nil {
			ds = nil
			err = fmt.Errorf("could not parse DICOM: %v", r)
		}
	}()

	data, err := dicom.Parse(file, info.Size(), nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not parse DICOM: %w", err)
	}

	return &Dataset{
		Data:     data,
		FilePath: path,
	}, nil
}

// NewDataset wraps already-built elements, mostly for callers that assemble records in memory.
func NewDataset(elements ...*dicom.Element) *Dataset {
	return &Dataset{Data: dicom.Dataset{Elements: elements}}
}

// Has reports whether the tag is present at this level of the record.
func (d *Dataset) Has(t tag.Tag) bool {
	_, err := d.Data.FindElementByTag(t)
	return err == nil
}

// Element returns the element for a tag.
func (d *Dataset) Element(t tag.Tag) (*dicom.Element, error) {
	elem, err := d.Data.FindElementByTag(t)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", TagName(t), ErrTagNotFound)
	}
	return elem, nil
}

// GetString returns a string value for a tag, or empty string if not found.
func (d *Dataset) GetString(t tag.Tag) string {
	elem, err := d.Data.FindElementByTag(t)
	if err != nil {
		return ""
	}

	if elem.Value == nil {
		return ""
	}

	values := elem.Value.GetValue()
	if values == nil {
		return ""
	}

	switch v := values.(type) {
	case []string:
		if len(v) > 0 {
			return v[0]
		}
		return ""
	case string:
		return v
	}

	return fmt.Sprintf("%v", values)
}

// GetTrimmedString returns GetString without DICOM padding (trailing NUL and space).
func (d *Dataset) GetTrimmedString(t tag.Tag) string {
	return strings.TrimRight(d.GetString(t), " \x00")
}

// Item returns a view of item index of the sequence stored under seq.
func (d *Dataset) Item(seq tag.Tag, index int) (*Dataset, error) {
	elem, err := d.Element(seq)
	if err != nil {
		return nil, err
	}
	if elem.Value == nil || elem.Value.ValueType() != dicom.Sequences {
		return nil, fmt.Errorf("%s: %w", TagName(seq), ErrNotSequence)
	}

	items, ok := elem.Value.GetValue().([]*dicom.SequenceItemValue)
	if !ok || index < 0 || index >= len(items) {
		return nil, fmt.Errorf("%s[%d]: %w", TagName(seq), index, ErrEmptySequence)
	}

	elements, _ := items[index].GetValue().([]*dicom.Element)
	return &Dataset{
		Data:     dicom.Dataset{Elements: elements},
		FilePath: d.FilePath,
	}, nil
}

// GetSOPClassUID returns the storage class of the record.
func (d *Dataset) GetSOPClassUID() string {
	return d.GetTrimmedString(tag.SOPClassUID)
}

// GetSOPInstanceUID returns the clinical instance identifier.
func (d *Dataset) GetSOPInstanceUID() string {
	return d.GetTrimmedString(tag.SOPInstanceUID)
}

// PrivateTags returns every private tag in the record, including those nested in sequences.
func (d *Dataset) PrivateTags() []tag.Tag {
	var found []tag.Tag
	walkElements(d.Data.Elements, func(e *dicom.Element) {
		if IsPrivate(e.Tag) {
			found = append(found, e.Tag)
		}
	})
	return found
}

// IsPrivate reports whether t is a vendor (odd group) tag.
func IsPrivate(t tag.Tag) bool {
	return t.Group%2 == 1
}

// TagName renders a tag as its dictionary keyword and (gggg,eeee) code.
func TagName(t tag.Tag) string {
	info, err := tag.Find(t)
	if err != nil || info.Name == "" {
		return fmt.Sprintf("(%04X,%04X)", t.Group, t.Element)
	}
	return fmt.Sprintf("%s (%04X,%04X)", info.Name, t.Group, t.Element)
}

func walkElements(elements []*dicom.Element, fn func(*dicom.Element)) {
	for _, e := range elements {
		fn(e)
		if e.Value == nil || e.Value.ValueType() != dicom.Sequences {
			continue
		}
		items, _ := e.Value.GetValue().([]*dicom.SequenceItemValue)
		for _, item := range items {
			nested, _ := item.GetValue().([]*dicom.Element)
			walkElements(nested, fn)
		}
	}
}

// baseNameErr trims the directories from filesystem errors so messages that
// reach the error log name files only.
func baseNameErr(err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return &fs.PathError{Op: pathErr.Op, Path: filepath.Base(pathErr.Path), Err: pathErr.Err}
	}
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return &os.LinkError{Op: linkErr.Op, Old: filepath.Base(linkErr.Old), New: filepath.Base(linkErr.New), Err: linkErr.Err}
	}
	return err
}
