package checkpoint

import (
	"fmt"
	"sort"
	"strings"
)

// Validation limits for resource protection.
const (
	MaxHeaderSize   = 100 * 1024 * 1024 // 100MB
	MaxEntryCount   = 1_000_000
	MaxEntryNameLen = 4096
)

// ValidateEntries checks names, groups and sizes, and that entries neither
// overlap nor reach past the data section.
func ValidateEntries(entries []EntryMeta, dataSize int64) error {
	if len(entries) > MaxEntryCount {
		return &ValidationError{
			Type:    "too_many_entries",
			Details: fmt.Sprintf("got %d, max %d", len(entries), MaxEntryCount),
		}
	}

	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if err := validateName(e.Name); err != nil {
			return err
		}
		if e.Group != GroupParam && e.Group != GroupOptimizer {
			return &ValidationError{Type: "invalid_group", Entry: e.Name, Details: fmt.Sprintf("group %q", e.Group)}
		}
		key := e.Group + "/" + e.Name
		if _, dup := seen[key]; dup {
			return &ValidationError{Type: "duplicate_entry", Entry: e.Name, Details: "appears twice in group " + e.Group}
		}
		seen[key] = struct{}{}
		if e.Size%4 != 0 {
			return &ValidationError{Type: "misaligned_size", Entry: e.Name, Details: fmt.Sprintf("%d bytes is not a float32 multiple", e.Size)}
		}
	}

	sorted := make([]EntryMeta, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, e := range sorted {
		if e.Offset < 0 || e.Size < 0 {
			return &ValidationError{
				Type:    "negative_offset",
				Entry:   e.Name,
				Details: fmt.Sprintf("offset=%d, size=%d", e.Offset, e.Size),
			}
		}
		if e.Offset+e.Size > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Entry:   e.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", e.Offset, e.Size, dataSize),
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if e.Offset+e.Size > next.Offset {
				return &ValidationError{
					Type:    "offset_overlap",
					Entry:   e.Name,
					Entry2:  next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap", e.Offset, e.Offset+e.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}
	return nil
}

func validateName(name string) error {
	switch {
	case name == "":
		return &ValidationError{Type: "invalid_name", Details: "empty name"}
	case len(name) > MaxEntryNameLen:
		return &ValidationError{Type: "name_too_long", Entry: name, Details: fmt.Sprintf("length %d > max %d", len(name), MaxEntryNameLen)}
	case strings.Contains(name, "\x00"):
		return &ValidationError{Type: "invalid_name", Entry: name, Details: "contains null byte"}
	}
	return nil
}
