package domain

// StageKind identifies one AI analysis operation.
type StageKind string

// Analysis stages in pipeline order.
const (
	// StageExtract converts the stored file into plain text. It is not
	// an AI stage but participates in failure reporting.
	StageExtract StageKind = "extract"

	// StageChunk splits extracted text into overlapping windows.
	StageChunk StageKind = "chunk"

	// StageClassify assigns a document type with a confidence score.
	StageClassify StageKind = "classify"

	// StageEntities extracts typed entity slots from the text.
	StageEntities StageKind = "entities"

	// StageSummarize produces a summary with key points.
	StageSummarize StageKind = "summarize"

	// StageEmbed generates the document embedding vector.
	StageEmbed StageKind = "embed"
)

// IsValid returns true if the stage kind is recognised.
func (k StageKind) IsValid() bool {
	switch k {
	case StageExtract, StageChunk, StageClassify, StageEntities, StageSummarize, StageEmbed:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (k StageKind) String() string {
	return string(k)
}

// Classification is the result of the classify stage.
type Classification struct {
	// Category is the assigned document type.
	Category DocumentType

	// Confidence is the model's confidence in [0,1].
	Confidence float64

	// Explanation is the model's short justification for the category.
	Explanation string

	// LowConfidence flags results below the configured threshold.
	// Such results are returned, not rejected; policy is the caller's.
	LowConfidence bool
}

// EntitySet holds typed entity slots extracted verbatim from the text.
// No normalisation or inference is applied: values appear exactly as
// they do in the source. Slices are sorted and de-duplicated.
type EntitySet struct {
	// Dates as written in the text, e.g. "15/01/2023".
	Dates []string

	// Amounts are monetary values without the currency marker,
	// e.g. "1.000,00".
	Amounts []string

	// People are personal names.
	People []string

	// Organizations are courts, companies and institutions.
	Organizations []string

	// Locations are place names.
	Locations []string

	// References are statute citations and protocol/reference numbers.
	References []string
}

// IsEmpty returns true if no entities were found.
func (e EntitySet) IsEmpty() bool {
	return len(e.Dates) == 0 && len(e.Amounts) == 0 && len(e.People) == 0 &&
		len(e.Organizations) == 0 && len(e.Locations) == 0 && len(e.References) == 0
}

// Merge combines another entity set into this one. Duplicates are
// removed by the caller's subsequent sort/compact pass.
func (e *EntitySet) Merge(other EntitySet) {
	e.Dates = append(e.Dates, other.Dates...)
	e.Amounts = append(e.Amounts, other.Amounts...)
	e.People = append(e.People, other.People...)
	e.Organizations = append(e.Organizations, other.Organizations...)
	e.Locations = append(e.Locations, other.Locations...)
	e.References = append(e.References, other.References...)
}

// Summary is the result of the summarize stage.
type Summary struct {
	// Text is the summary body.
	Text string

	// KeyPoints are the main takeaways, one per entry.
	KeyPoints []string

	// WordCount is the number of words in Text.
	WordCount int
}
