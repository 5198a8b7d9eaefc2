package change

import (
	"strings"
)

// Kind is the entity type tag carried by every entity reference.
type Kind string

const (
	KindApplication Kind = "APPLICATION"
	KindProgram     Kind = "PROGRAM"
	KindDataset     Kind = "DATASET"
	KindStream      Kind = "STREAM"
	KindArtifact    Kind = "ARTIFACT"
	KindStreamView  Kind = "STREAM_VIEW"
)

// EntityRef identifies the entity a change applies to. The set of
// implementations is closed; references to kinds this package does not model
// decode as UnknownRef.
type EntityRef interface {
	Kind() Kind
	// String is the canonical form, e.g. "dataset:default.purchases".
	String() string
	entityRef()
}

type ApplicationRef struct {
	Namespace   string `json:"namespace"`
	Application string `json:"application"`
	Version     string `json:"version,omitempty"`
}

type ProgramRef struct {
	Namespace   string `json:"namespace"`
	Application string `json:"application"`
	Version     string `json:"version,omitempty"`
	Type        string `json:"type"`
	Program     string `json:"program"`
}

type DatasetRef struct {
	Namespace string `json:"namespace"`
	Dataset   string `json:"dataset"`
}

type StreamRef struct {
	Namespace string `json:"namespace"`
	Stream    string `json:"stream"`
}

type ArtifactRef struct {
	Namespace string `json:"namespace"`
	Artifact  string `json:"artifact"`
	Version   string `json:"version"`
}

type StreamViewRef struct {
	Namespace string `json:"namespace"`
	Stream    string `json:"stream"`
	View      string `json:"view"`
}

// UnknownRef carries a reference whose kind is not modelled.
type UnknownRef struct {
	EntityKind Kind
	Raw        []byte
}

func (ApplicationRef) Kind() Kind { return KindApplication }
func (ProgramRef) Kind() Kind     { return KindProgram }
func (DatasetRef) Kind() Kind     { return KindDataset }
func (StreamRef) Kind() Kind      { return KindStream }
func (ArtifactRef) Kind() Kind    { return KindArtifact }
func (StreamViewRef) Kind() Kind  { return KindStreamView }
func (r UnknownRef) Kind() Kind   { return r.EntityKind }

func (ApplicationRef) entityRef() {}
func (ProgramRef) entityRef()     {}
func (DatasetRef) entityRef()     {}
func (StreamRef) entityRef()      {}
func (ArtifactRef) entityRef()    {}
func (StreamViewRef) entityRef()  {}
func (UnknownRef) entityRef()     {}

func canonical(prefix string, parts ...string) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte(':')
	first := true
	for _, p := range parts {
		if p == "" {
			continue
		}
		if !first {
			b.WriteByte('.')
		}
		b.WriteString(p)
		first = false
	}
	return b.String()
}

func (r ApplicationRef) String() string {
	return canonical("application", r.Namespace, r.Application, r.Version)
}

func (r ProgramRef) String() string {
	return canonical("program", r.Namespace, r.Application, r.Version, strings.ToLower(r.Type), r.Program)
}

func (r DatasetRef) String() string { return canonical("dataset", r.Namespace, r.Dataset) }
func (r StreamRef) String() string  { return canonical("stream", r.Namespace, r.Stream) }

func (r ArtifactRef) String() string {
	return canonical("artifact", r.Namespace, r.Artifact, r.Version)
}

func (r StreamViewRef) String() string {
	return canonical("stream_view", r.Namespace, r.Stream, r.View)
}

func (r UnknownRef) String() string { return strings.ToLower(string(r.EntityKind)) + ":?" }
