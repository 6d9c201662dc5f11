package checkpoint

import (
	"crypto/sha256"
	"time"
)

// Format constants.
const (
	MagicBytes      = "BORN"
	FormatVersion   = 2
	FixedHeaderSize = 64 // 0x40
	HeaderAlignment = 64 // Align data to 64 bytes.
	ChecksumOffset  = 0x20
	ChecksumSize    = sha256.Size
)

// FlagHasOptimizer is set when the file carries optimizer state.
const FlagHasOptimizer uint32 = 1 << 1

// Entry groups.
const (
	GroupParam     = "param"
	GroupOptimizer = "optim"
)

// Header is the JSON header of a checkpoint file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	Model         string            `json:"model"`
	Optimizer     string            `json:"optimizer,omitempty"`
	Epoch         int               `json:"epoch"`
	Device        string            `json:"device"`
	CreatedAt     time.Time         `json:"created_at"`
	Entries       []EntryMeta       `json:"entries"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// EntryMeta describes one float32 vector in the data section.
type EntryMeta struct {
	Name   string `json:"name"`
	Group  string `json:"group"`
	Offset int64  `json:"offset"` // Bytes from the start of the data section.
	Size   int64  `json:"size"`   // Bytes.
}

// ComputeChecksum computes the SHA-256 checksum of data.
func ComputeChecksum(data []byte) [ChecksumSize]byte {
	return sha256.Sum256(data)
}

// padding returns the number of zero bytes after pos up to the alignment.
func padding(pos int64) int64 {
	return (HeaderAlignment - pos%HeaderAlignment) % HeaderAlignment
}
