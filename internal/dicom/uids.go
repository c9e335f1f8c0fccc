package dicom

// SOP Class UIDs stored in (0008,0016).
const (
	CTImageStorage               = "1.2.840.10008.5.1.4.1.1.2"
	EnhancedCTImageStorage       = "1.2.840.10008.5.1.4.1.1.2.1"
	MRImageStorage               = "1.2.840.10008.5.1.4.1.1.4"
	EnhancedMRImageStorage       = "1.2.840.10008.5.1.4.1.1.4.1"
	SecondaryCaptureImageStorage = "1.2.840.10008.5.1.4.1.1.7"
)

// Explicit VR Little Endian (uncompressed)
const ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"
