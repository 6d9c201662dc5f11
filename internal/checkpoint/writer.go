package checkpoint

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Write encodes c to w.
func Write(w io.Writer, c *Checkpoint) error {
	if c.Params == nil {
		return fmt.Errorf("checkpoint: no parameters to write")
	}

	header := Header{
		FormatVersion: FormatVersion,
		Model:         c.Model,
		Optimizer:     c.Optimizer,
		Epoch:         c.Epoch,
		Device:        c.Params.Device().String(),
		CreatedAt:     time.Now().UTC(),
		Metadata:      c.Metadata,
	}

	var data []byte
	add := func(group, name string, values []float32) {
		header.Entries = append(header.Entries, EntryMeta{
			Name:   name,
			Group:  group,
			Offset: int64(len(data)),
			Size:   int64(4 * len(values)),
		})
		data = appendFloats(data, values)
	}
	for _, id := range c.Params.IDs() {
		v, _ := c.Params.Get(id)
		add(GroupParam, string(id), v)
	}
	keys := make([]string, 0, len(c.OptimizerState))
	for k := range c.OptimizerState {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(GroupOptimizer, k, c.OptimizerState[k])
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal header: %w", err)
	}

	flags := uint32(0)
	if len(c.OptimizerState) > 0 {
		flags |= FlagHasOptimizer
	}
	checksum := ComputeChecksum(data)

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	pad := make([]byte, padding(int64(FixedHeaderSize+len(headerJSON))))
	for _, chunk := range [][]byte{fixed, headerJSON, pad, data} {
		if _, err := w.Write(chunk); err != nil {
			return fmt.Errorf("checkpoint: write: %w", err)
		}
	}
	return nil
}

// Save writes c to path atomically: the file is written next to path and
// renamed into place.
func Save(path string, c *Checkpoint) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("checkpoint: create: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // Already renamed on success.

	buf := bufio.NewWriter(tmp)
	if err := Write(buf, c); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := buf.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("checkpoint: flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("checkpoint: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("checkpoint: rename: %w", err)
	}
	return nil
}

func appendFloats(dst []byte, values []float32) []byte {
	for _, v := range values {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}
