package anonymizer

import "github.com/suyashkumar/dicom/pkg/tag"

// Fixed patient names written in place of the real one.
const (
	CTPlaceholderName = "CT_Patient"
	MRPlaceholderName = "MRI_patient"
)

// Policy is what a rule does to its tag.
//
// Blank, Replace and Delete on an unguarded rule require the tag to be
// present and fail with ErrMissingRequiredField otherwise. The Assign
// policies upsert instead: an absent SOPInstanceUID, StudyInstanceUID,
// FrameOfReferenceUID or DeviceUID is created with the generated value, so a
// record missing an identifier leaves with a fresh one rather than failing.
type Policy int

const (
	PolicyBlank   Policy = iota // overwrite with a single space
	PolicyReplace               // overwrite with Rule.Value
	PolicyDelete                // remove the element

	// Identifier injection.
	PolicyAssignInstance
	PolicyAssignStudy
	PolicyAssignEquipment
	PolicyAssignFrameOfReference
)

func (p Policy) String() string {
	switch p {
	case PolicyBlank:
		return "blank"
	case PolicyReplace:
		return "replace"
	case PolicyDelete:
		return "delete"
	case PolicyAssignInstance:
		return "assign-instance"
	case PolicyAssignStudy:
		return "assign-study"
	case PolicyAssignEquipment:
		return "assign-equipment"
	case PolicyAssignFrameOfReference:
		return "assign-frame-of-reference"
	default:
		return "unknown"
	}
}

// assigns reports whether the policy injects an identifier.
func (p Policy) assigns() bool {
	return p >= PolicyAssignInstance
}

// Rule is one row of a redaction table.
type Rule struct {
	Tag    tag.Tag
	Policy Policy
	Value  string // PolicyReplace only

	// Sequence, when set, points the rule at item 0 of that sequence.
	Sequence *tag.Tag

	// Guarded rules run only when their tag (or Sequence) is present beforehand.
	Guarded bool
}

// RuleSet is the complete redaction policy for one modality.
type RuleSet struct {
	Modality     Modality
	Rules        []Rule
	StripPrivate bool
}

func blank(t tag.Tag) Rule                 { return Rule{Tag: t, Policy: PolicyBlank} }
func replace(t tag.Tag, value string) Rule { return Rule{Tag: t, Policy: PolicyReplace, Value: value} }
func assign(t tag.Tag, p Policy) Rule      { return Rule{Tag: t, Policy: p} }

func guarded(r Rule) Rule {
	r.Guarded = true
	return r
}

func inItem(seq tag.Tag, r Rule) Rule {
	r.Sequence = &seq
	return r
}

// identifierRules regenerate the UIDs shared by both rule sets. The file meta
// instance UID and the clinical instance UID receive the same value.
var identifierRules = []Rule{
	blank(tag.SourceApplicationEntityTitle),
	assign(tag.MediaStorageSOPInstanceUID, PolicyAssignInstance),
	assign(tag.SOPInstanceUID, PolicyAssignInstance),
	assign(tag.StudyInstanceUID, PolicyAssignStudy),
	// Series linkage is dropped, not regenerated.
	blank(tag.SeriesInstanceUID),
	assign(tag.FrameOfReferenceUID, PolicyAssignFrameOfReference),
}

// CTRules de-identifies CT Image Storage records. Every field is assumed present.
var CTRules = RuleSet{
	Modality: ModalityCT,
	Rules: concat([]Rule{
		replace(tag.PatientName, CTPlaceholderName),
		blank(tag.AccessionNumber),
		blank(tag.Manufacturer),
		blank(tag.InstitutionName),
		blank(tag.InstitutionAddress),
		blank(tag.ReferringPhysicianName),
		blank(tag.StationName),
		blank(tag.InstitutionalDepartmentName),
		blank(tag.OperatorsName),
		blank(tag.ManufacturerModelName),
		blank(tag.PatientID),
		blank(tag.PatientBirthDate),
		blank(tag.PatientSex),
		blank(tag.PatientAge),
		blank(tag.DeviceSerialNumber),
		blank(tag.SoftwareVersions),
		blank(tag.StudyID),
		blank(tag.AcquisitionDate),
		blank(tag.AcquisitionTime),
		blank(tag.SeriesDate),
		blank(tag.StudyDate),
		blank(tag.SeriesTime),
		blank(tag.StudyTime),
		blank(tag.ContentDate),
		blank(tag.ContentTime),
		blank(tag.ScheduledProcedureStepEndDate),
		blank(tag.ScheduledProcedureStepEndTime),
		blank(tag.ScheduledProcedureStepStartDate),
		blank(tag.ScheduledProcedureStepStartTime),
		blank(tag.PerformedProcedureStepID),
		blank(tag.PerformedProcedureStepStartDate),
		blank(tag.PerformedProcedureStepStartTime),
		inItem(tag.RequestAttributesSequence, blank(tag.ScheduledProcedureStepID)),
		inItem(tag.RequestAttributesSequence, blank(tag.RequestedProcedureID)),
	}, identifierRules),
	StripPrivate: true,
}

// MRRules de-identifies MR Image Storage records. MR series of one exam differ
// in which optional tags they carry, so those steps are guarded.
var MRRules = RuleSet{
	Modality: ModalityMR,
	Rules: concat([]Rule{
		blank(tag.InstanceCreationDate),
		blank(tag.InstanceCreationTime),
		blank(tag.StudyDate),
		blank(tag.SeriesDate),
		blank(tag.AcquisitionDate),
		blank(tag.ContentDate),
		blank(tag.StudyTime),
		blank(tag.SeriesTime),
		blank(tag.AcquisitionTime),
		blank(tag.ContentTime),
		blank(tag.AccessionNumber),
		blank(tag.Manufacturer),
		blank(tag.InstitutionName),
		blank(tag.ReferringPhysicianName),
		blank(tag.StationName),
		blank(tag.NameOfPhysiciansReadingStudy),
		blank(tag.OperatorsName),
		replace(tag.PatientName, MRPlaceholderName),
		blank(tag.PatientID),
		blank(tag.PatientBirthDate),
		blank(tag.PatientSex),
		blank(tag.PatientAge),
		blank(tag.PatientWeight),
		blank(tag.AdditionalPatientHistory),
		// "ManufacturersModelName" is not a dictionary keyword; both spellings
		// address (0008,1090).
		blank(tag.ManufacturerModelName),

		guarded(blank(tag.PerformedProcedureStepID)),
		guarded(inItem(tag.RequestAttributesSequence, blank(tag.ScheduledProcedureStepID))),
		guarded(inItem(tag.RequestAttributesSequence, blank(tag.RequestedProcedureID))),
		guarded(blank(tag.DeviceSerialNumber)),
		guarded(Rule{Tag: tag.ReferencedImageSequence, Policy: PolicyDelete}),
	}, identifierRules, []Rule{
		// Equipment identity is MR only.
		assign(tag.DeviceUID, PolicyAssignEquipment),
	}),
	StripPrivate: true,
}

// RulesFor returns the rule set for a modality.
func RulesFor(m Modality) (RuleSet, bool) {
	switch m {
	case ModalityCT:
		return CTRules, true
	case ModalityMR:
		return MRRules, true
	default:
		return RuleSet{}, false
	}
}

func concat(groups ...[]Rule) []Rule {
	var out []Rule
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
