package domain

import "time"

// SourcePatch lists the mutable fields of a Source. Nil fields are left
// untouched. Applying a patch returns a new value; the input is never
// mutated in place.
type SourcePatch struct {
	Name             *string
	Language         *Language
	Type             *SourceType
	OriginalSourceID *string
	Properties       map[string]any
}

// ApplySourcePatch returns a copy of src with the patch applied and the
// audit fields stamped.
func ApplySourcePatch(src Source, patch SourcePatch, actor string, now time.Time) Source {
	out := src

	if patch.Name != nil {
		out.Name = *patch.Name
	}
	if patch.Language != nil {
		out.Language = *patch.Language
	}
	if patch.Type != nil {
		out.Type = *patch.Type
	}
	if patch.OriginalSourceID != nil {
		out.OriginalSourceID = *patch.OriginalSourceID
	}
	if patch.Properties != nil {
		props := make(map[string]any, len(src.Properties)+len(patch.Properties))
		for k, v := range src.Properties {
			props[k] = v
		}
		for k, v := range patch.Properties {
			props[k] = v
		}
		out.Properties = props
	} else if src.Properties != nil {
		props := make(map[string]any, len(src.Properties))
		for k, v := range src.Properties {
			props[k] = v
		}
		out.Properties = props
	}

	out.ModifiedBy = actor
	out.ModifiedAt = now
	return out
}
