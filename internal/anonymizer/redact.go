package anonymizer

import (
	"fmt"

	dcm "dicom-deidentifier/internal/dicom"
	"dicom-deidentifier/internal/identity"
)

// Engine applies redaction rule sets to records.
type Engine struct {
	uids *identity.Generator
}

// NewEngine returns an engine drawing per-file identifiers from uids.
func NewEngine(uids *identity.Generator) *Engine {
	return &Engine{uids: uids}
}

// Redact de-identifies ds in place using the rule set for modality. run holds
// the identifiers shared by every record of the current run; per-record
// identifiers are drawn here. A failing unguarded rule aborts the redaction
// and the record must not be saved.
func (e *Engine) Redact(ds *dcm.Dataset, modality Modality, run identity.RunIdentifiers) error {
	rules, ok := RulesFor(modality)
	if !ok {
		return fmt.Errorf("no redaction rules for modality %s", modality)
	}
	return e.Apply(ds, rules, run)
}

// Apply runs every rule of rs against ds in table order, then strips private tags.
func (e *Engine) Apply(ds *dcm.Dataset, rs RuleSet, run identity.RunIdentifiers) error {
	file := e.uids.NewFileIdentifiers()

	for _, rule := range rs.Rules {
		if err := applyRule(ds, rule, run, file); err != nil {
			return err
		}
	}

	if rs.StripPrivate {
		if _, err := ds.RemovePrivateTags(); err != nil {
			return fmt.Errorf("could not remove private tags: %w", err)
		}
	}

	return nil
}

func applyRule(ds *dcm.Dataset, rule Rule, run identity.RunIdentifiers, file identity.FileIdentifiers) error {
	target := ds

	if rule.Sequence != nil {
		if rule.Guarded && !ds.Has(*rule.Sequence) {
			return nil
		}
		item, err := ds.Item(*rule.Sequence, 0)
		if err != nil {
			return &MissingFieldError{Tag: rule.Tag, Sequence: rule.Sequence, Err: err}
		}
		target = item
	} else if rule.Guarded && !ds.Has(rule.Tag) {
		return nil
	}

	if rule.Policy.assigns() {
		value := assignedValue(rule.Policy, run, file)
		if err := target.Put(rule.Tag, value); err != nil {
			return fmt.Errorf("could not assign %s: %w", dcm.TagName(rule.Tag), err)
		}
		return nil
	}

	var err error
	switch rule.Policy {
	case PolicyBlank:
		err = target.Blank(rule.Tag)
	case PolicyReplace:
		err = target.Replace(rule.Tag, rule.Value)
	case PolicyDelete:
		if !target.Delete(rule.Tag) {
			err = dcm.ErrTagNotFound
		}
	default:
		return fmt.Errorf("unknown policy %d for %s", rule.Policy, dcm.TagName(rule.Tag))
	}

	if err != nil {
		return &MissingFieldError{Tag: rule.Tag, Sequence: rule.Sequence, Err: err}
	}
	return nil
}

func assignedValue(p Policy, run identity.RunIdentifiers, file identity.FileIdentifiers) string {
	switch p {
	case PolicyAssignInstance:
		return file.Instance
	case PolicyAssignStudy:
		return run.Study
	case PolicyAssignEquipment:
		return run.Equipment
	case PolicyAssignFrameOfReference:
		return file.FrameOfReference
	default:
		return ""
	}
}
