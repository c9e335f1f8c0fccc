package dicom

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// BlankValue is what a cleared field holds: a single space keeps the element
// present with a non-identifying value.
const BlankValue = " "

// Replace overwrites the value of a tag that must already be present.
func (d *Dataset) Replace(t tag.Tag, value string) error {
	elem, err := d.Element(t)
	if err != nil {
		return err
	}

	newValue, err := dicom.NewValue([]string{value})
	if err != nil {
		return fmt.Errorf("could not create value: %w", err)
	}

	// Edit in place so item views and the parent record see the same element.
	elem.Value = newValue
	elem.ValueLength = uint32(len(value))
	return nil
}

// Blank clears a tag that must already be present.
func (d *Dataset) Blank(t tag.Tag) error {
	return d.Replace(t, BlankValue)
}

// Put sets a tag, inserting it in tag order when absent.
func (d *Dataset) Put(t tag.Tag, value string) error {
	if d.Has(t) {
		return d.Replace(t, value)
	}

	elem, err := dicom.NewElement(t, []string{value})
	if err != nil {
		return fmt.Errorf("could not create %s: %w", TagName(t), err)
	}

	elements := d.Data.Elements
	pos := len(elements)
	for i, e := range elements {
		if tagLess(t, e.Tag) {
			pos = i
			break
		}
	}

	elements = append(elements, nil)
	copy(elements[pos+1:], elements[pos:])
	elements[pos] = elem
	d.Data.Elements = elements
	return nil
}

// Delete removes a tag from this level of the record. It reports whether the tag was present.
func (d *Dataset) Delete(t tag.Tag) bool {
	for i, e := range d.Data.Elements {
		if e.Tag == t {
			d.Data.Elements = append(d.Data.Elements[:i], d.Data.Elements[i+1:]...)
			return true
		}
	}
	return false
}

// RemovePrivateTags strips every odd-group element, descending into sequence items.
// It returns the number of elements removed.
func (d *Dataset) RemovePrivateTags() (int, error) {
	kept, removed, err := stripPrivate(d.Data.Elements)
	if err != nil {
		return 0, err
	}
	d.Data.Elements = kept
	return removed, nil
}

func stripPrivate(elements []*dicom.Element) ([]*dicom.Element, int, error) {
	kept := make([]*dicom.Element, 0, len(elements))
	removed := 0

	for _, e := range elements {
		if IsPrivate(e.Tag) {
			removed++
			continue
		}

		if e.Value != nil && e.Value.ValueType() == dicom.Sequences {
			items, _ := e.Value.GetValue().([]*dicom.SequenceItemValue)
			rebuilt := make([][]*dicom.Element, 0, len(items))
			nestedRemoved := 0
			for _, item := range items {
				nested, _ := item.GetValue().([]*dicom.Element)
				filtered, n, err := stripPrivate(nested)
				if err != nil {
					return nil, 0, err
				}
				nestedRemoved += n
				rebuilt = append(rebuilt, filtered)
			}

			// Item element lists are not settable, so the sequence is rebuilt
			// only when something inside it was dropped.
			if nestedRemoved > 0 {
				value, err := dicom.NewValue(rebuilt)
				if err != nil {
					return nil, 0, fmt.Errorf("could not rebuild %s: %w", TagName(e.Tag), err)
				}
				e.Value = value
				removed += nestedRemoved
			}
		}

		kept = append(kept, e)
	}

	return kept, removed, nil
}

// Save writes the dataset to outputPath.
//
// The data goes to a temporary file in the destination directory first and is
// renamed into place only once fully written, so a failed write never leaves a
// partial file at outputPath.
func (d *Dataset) Save(outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("could not create output directory: %w", baseNameErr(err))
	}

	tmp, err := os.CreateTemp(dir, ".partial-*"+filepath.Ext(outputPath))
	if err != nil {
		return fmt.Errorf("could not create temp file: %w", baseNameErr(err))
	}
	tmpPath := tmp.Name()

	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("could not set permissions: %w", baseNameErr(err))
	}

	// Write DICOM with relaxed verification (many real-world DICOM files
	// don't strictly follow VR specifications)
	if err := dicom.Write(tmp, d.Data,
		dicom.SkipVRVerification(),
		dicom.SkipValueTypeVerification(),
		dicom.DefaultMissingTransferSyntax(),
	); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("could not write DICOM: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("could not close temp file: %w", baseNameErr(err))
	}

	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("could not move output into place: %w", baseNameErr(err))
	}

	return nil
}

func tagLess(a, b tag.Tag) bool {
	if a.Group != b.Group {
		return a.Group < b.Group
	}
	return a.Element < b.Element
}
