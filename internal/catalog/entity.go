// Package catalog translates metadata changes into catalog entities.
package catalog

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
)

type SourceType string

const (
	SourceHDFS SourceType = "HDFS"
	SourceHive SourceType = "HIVE"
	SourceSDK  SourceType = "SDK"
)

type EntityType string

const (
	EntityFile      EntityType = "FILE"
	EntityDataset   EntityType = "DATASET"
	EntityOperation EntityType = "OPERATION"
	EntityTable     EntityType = "TABLE"
)

// Entity is the catalog-side representation of one change. Tag and property
// sets are kept sorted so that equal changes produce equal entities.
type Entity struct {
	ExternalID    string            `json:"identity"`
	Name          string            `json:"name"`
	Namespace     string            `json:"namespace"`
	SourceType    SourceType        `json:"sourceType"`
	EntityType    EntityType        `json:"entityType"`
	TagsToAdd     []string          `json:"newTags,omitempty"`
	TagsToRemove  []string          `json:"delTags,omitempty"`
	PropsToAdd    map[string]string `json:"newProperties,omitempty"`
	PropsToRemove []string          `json:"removeProperties,omitempty"`
}

// Empty reports whether the entity carries no tag or property changes.
func (e Entity) Empty() bool {
	return len(e.TagsToAdd) == 0 && len(e.TagsToRemove) == 0 &&
		len(e.PropsToAdd) == 0 && len(e.PropsToRemove) == 0
}

// generateID is the lowercase hex MD5 of the identifying fields written back
// to back. Existing catalog entries were keyed this way, so the layout must
// not change.
func generateID(fields ...string) string {
	h := md5.New()
	for _, f := range fields {
		h.Write([]byte(f))
	}
	return hex.EncodeToString(h.Sum(nil))
}

type stringSet map[string]struct{}

func (s stringSet) add(vs ...string) {
	for _, v := range vs {
		s[v] = struct{}{}
	}
}

func (s stringSet) sorted() []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
