package core

// FieldKind is the semantic type of an uploadable column.
type FieldKind int

// Field kinds.
const (
	KindText FieldKind = iota
	KindDate
	KindFloat
	KindInt
	KindBool
	KindChoice
	KindReference
)

func (k FieldKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindDate:
		return "date"
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindChoice:
		return "choice"
	case KindReference:
		return "reference"
	}
	return "unknown"
}

// Field describes one uploadable Sample column.
// MaxLength of zero means unbounded text.
type Field struct {
	Name      string
	Kind      FieldKind
	MaxLength int
}

// Character limits for text columns.
const (
	SmallChar = 50
	LargeChar = 250
)

// Sample column names referenced outside the field table.
const (
	ColSampleName       = "sample_name"
	ColSubmittingLab    = "submitting_lab"
	ColSubmitterProject = "submitter_project"
	ColBMHProject       = "bmh_project"
	ColSampleType       = "sample_type"
)

// SampleFields lists every column an upload may carry, in template order.
// Generated columns (sample_id, timestamps) are not uploadable.
var SampleFields = []Field{
	{ColSampleName, KindText, SmallChar},
	{"tube_plate_label", KindText, SmallChar},
	{"well", KindText, SmallChar},
	{ColSubmittingLab, KindReference, SmallChar},
	{ColSampleType, KindChoice, SmallChar},
	{"sample_volume_in_ul", KindFloat, 0},
	{"requested_services", KindText, LargeChar},
	{ColSubmitterProject, KindText, SmallChar},
	{ColBMHProject, KindReference, SmallChar},
	{"strain", KindText, SmallChar},
	{"isolate", KindText, SmallChar},
	{"genus", KindText, SmallChar},
	{"species", KindText, SmallChar},
	{"subspecies_subtype_lineage", KindText, LargeChar},
	{"approx_genome_size_in_bp", KindInt, 0},
	{"comments", KindText, 0},
	{"culture_date", KindDate, 0},
	{"culture_conditions", KindText, 0},
	{"dna_extraction_date", KindDate, 0},
	{"dna_extraction_method", KindText, 0},
	{"qubit_concentration_in_ng_ul", KindFloat, 0},
	{"received", KindBool, 0},
}

var sampleFieldIndex = func() map[string]Field {
	m := make(map[string]Field, len(SampleFields))
	for _, f := range SampleFields {
		m[f.Name] = f
	}
	return m
}()

// LookupField returns the field definition for a column name.
func LookupField(name string) (Field, bool) {
	f, ok := sampleFieldIndex[name]
	return f, ok
}
