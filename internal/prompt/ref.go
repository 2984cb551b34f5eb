package prompt

// Source names where a template body lives.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// VersionLatest is the distinguished "no explicit pin" label. For remote
// lookups it maps to the service's own current version.
const VersionLatest = "latest"

// Ref identifies one template: which store it lives in and which version
// (or label) to fetch. Immutable; built per selection, consumed per run.
type Ref struct {
	Name    string
	Source  Source
	Version string
}

func (r Ref) String() string {
	v := r.Version
	if v == "" {
		v = VersionLatest
	}
	return r.Name + "@" + v + " (" + string(r.Source) + ")"
}

// Category is the pipeline stage a template is meant for.
type Category string

const (
	CategoryExtraction Category = "extraction"
	CategoryConcept    Category = "concept"
	CategoryDraft      Category = "draft"
	CategoryCheck      Category = "check"
)

// Categories in pipeline order.
var Categories = []Category{CategoryExtraction, CategoryConcept, CategoryDraft, CategoryCheck}

// Info describes one discovered template and its known versions.
type Info struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Source      Source   `json:"source"`
	Versions    []string `json:"versions"`
}
