package catalog

import (
	"errors"
	"fmt"

	"metasync/internal/change"
)

var ErrUnsupportedKind = errors.New("catalog: unsupported entity kind")

// UnsupportedKindError is returned for references that have no catalog
// representation. It matches ErrUnsupportedKind.
type UnsupportedKindError struct {
	Kind change.Kind
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("catalog: entity kind %q not supported", string(e.Kind))
}

func (e *UnsupportedKindError) Is(target error) bool { return target == ErrUnsupportedKind }

// Translator converts change events into entities for one catalog namespace.
type Translator struct {
	Namespace string
}

// Translate builds the entity for ev. Additions and deletions are merged
// across scopes; deletions are read from their own map, never from the scope
// keys of the additions.
func (t Translator) Translate(ev change.Event) (Entity, error) {
	e, err := identify(ev.Entity)
	if err != nil {
		return Entity{}, err
	}
	e.Namespace = t.Namespace

	addTags, delTags, delProps := stringSet{}, stringSet{}, stringSet{}
	addProps := map[string]string{}
	for _, md := range ev.Additions {
		addTags.add(md.Tags...)
		for k, v := range md.Properties {
			addProps[k] = v
		}
	}
	for _, md := range ev.Deletions {
		delTags.add(md.Tags...)
		for k := range md.Properties {
			delProps.add(k)
		}
	}

	e.TagsToAdd = addTags.sorted()
	e.TagsToRemove = delTags.sorted()
	e.PropsToRemove = delProps.sorted()
	if len(addProps) > 0 {
		e.PropsToAdd = addProps
	}
	return e, nil
}

// identify derives the id, name and classification for a reference.
func identify(ref change.EntityRef) (Entity, error) {
	switch r := ref.(type) {
	case change.ApplicationRef:
		return Entity{
			ExternalID: generateID(r.Namespace, r.Application),
			Name:       r.String(),
			SourceType: SourceHDFS,
			EntityType: EntityFile,
		}, nil
	case change.ProgramRef:
		return Entity{
			ExternalID: generateID(r.String()),
			Name:       r.String(),
			SourceType: SourceSDK,
			EntityType: EntityOperation,
		}, nil
	case change.DatasetRef:
		return Entity{
			ExternalID: generateID(r.Namespace, r.Dataset),
			Name:       r.String(),
			SourceType: SourceHive,
			EntityType: EntityDataset,
		}, nil
	case change.StreamRef:
		return Entity{
			ExternalID: generateID(r.String()),
			Name:       r.String(),
			SourceType: SourceSDK,
			EntityType: EntityDataset,
		}, nil
	case change.ArtifactRef:
		return Entity{
			ExternalID: generateID(r.String()),
			Name:       r.String(),
			SourceType: SourceSDK,
			EntityType: EntityFile,
		}, nil
	case change.StreamViewRef:
		return Entity{
			ExternalID: generateID(r.Namespace, r.Stream, r.View),
			Name:       r.String(),
			SourceType: SourceSDK,
			EntityType: EntityTable,
		}, nil
	case nil:
		return Entity{}, &UnsupportedKindError{}
	default:
		return Entity{}, &UnsupportedKindError{Kind: ref.Kind()}
	}
}
