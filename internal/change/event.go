// Package change decodes audit messages describing metadata changes.
package change

import (
	"encoding/json"
	"errors"
	"fmt"
)

// TypeMetadataChange is the only audit message type that carries metadata.
const TypeMetadataChange = "METADATA_CHANGE"

var (
	ErrNotMetadataChange = errors.New("change: not a metadata change")
	ErrMalformed         = errors.New("change: malformed audit message")
)

// Scope classifies metadata by who owns it.
type Scope string

const (
	ScopeUser   Scope = "USER"
	ScopeSystem Scope = "SYSTEM"
)

// Metadata is one scope's tags and properties.
type Metadata struct {
	Tags       []string          `json:"tags"`
	Properties map[string]string `json:"properties"`
}

// Event is a decoded metadata change.
type Event struct {
	Type      string
	Time      int64
	User      string
	Entity    EntityRef
	Additions map[Scope]Metadata
	Deletions map[Scope]Metadata
}

type wireMessage struct {
	Version  int             `json:"version"`
	Time     int64           `json:"time"`
	EntityID json.RawMessage `json:"entityId"`
	User     string          `json:"user"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
}

type wirePayload struct {
	Additions map[Scope]Metadata `json:"additions"`
	Deletions map[Scope]Metadata `json:"deletions"`
}

// Decode parses an audit message. Messages of any type other than
// METADATA_CHANGE return the partially filled Event and ErrNotMetadataChange.
func Decode(data []byte) (Event, error) {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	ev := Event{Type: msg.Type, Time: msg.Time, User: msg.User}
	if msg.Type != TypeMetadataChange {
		return ev, fmt.Errorf("%w: %q", ErrNotMetadataChange, msg.Type)
	}
	if len(msg.EntityID) == 0 {
		return ev, fmt.Errorf("%w: missing entityId", ErrMalformed)
	}

	ref, err := decodeRef(msg.EntityID)
	if err != nil {
		return ev, err
	}
	ev.Entity = ref

	var p wirePayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return ev, fmt.Errorf("%w: payload: %v", ErrMalformed, err)
		}
	}
	ev.Additions, ev.Deletions = p.Additions, p.Deletions
	return ev, nil
}

func decodeRef(raw json.RawMessage) (EntityRef, error) {
	var head struct {
		Entity Kind `json:"entity"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("%w: entityId: %v", ErrMalformed, err)
	}

	var (
		ref EntityRef
		err error
	)
	switch head.Entity {
	case KindApplication:
		ref, err = unmarshalRef[ApplicationRef](raw)
	case KindProgram:
		ref, err = unmarshalRef[ProgramRef](raw)
	case KindDataset:
		ref, err = unmarshalRef[DatasetRef](raw)
	case KindStream:
		ref, err = unmarshalRef[StreamRef](raw)
	case KindArtifact:
		ref, err = unmarshalRef[ArtifactRef](raw)
	case KindStreamView:
		ref, err = unmarshalRef[StreamViewRef](raw)
	default:
		ref = UnknownRef{EntityKind: head.Entity, Raw: append([]byte(nil), raw...)}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: entityId: %v", ErrMalformed, err)
	}
	return ref, nil
}

func unmarshalRef[T EntityRef](raw json.RawMessage) (EntityRef, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
