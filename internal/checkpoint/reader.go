package checkpoint

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/born-ml/born-train/internal/device"
	"github.com/born-ml/born-train/internal/param"
)

// Read decodes a checkpoint from r, placing its parameters on d. The data
// checksum and the entry layout are verified before any value is decoded.
func Read(r io.Reader, d device.Device) (*Checkpoint, error) {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, fmt.Errorf("checkpoint: read fixed header: %w", err)
	}
	if string(fixed[0:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	if version := binary.LittleEndian.Uint32(fixed[4:8]); version != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	var stored [ChecksumSize]byte
	copy(stored[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}
	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, fmt.Errorf("checkpoint: read header: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("checkpoint: parse header: %w", err)
	}

	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize.
	if _, err := io.CopyN(io.Discard, r, padding(int64(FixedHeaderSize)+int64(headerSize))); err != nil {
		return nil, fmt.Errorf("checkpoint: read padding: %w", err)
	}

	data, err := io.ReadAll(io.LimitReader(r, int64(dataSize))) //nolint:gosec // G115: bounded by the reader.
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read data: %w", err)
	}
	if uint64(len(data)) != dataSize {
		return nil, fmt.Errorf("checkpoint: data section has %d of %d bytes: %w", len(data), dataSize, io.ErrUnexpectedEOF)
	}
	if ComputeChecksum(data) != stored {
		return nil, ErrChecksumMismatch
	}
	if err := ValidateEntries(header.Entries, int64(len(data))); err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}

	c := &Checkpoint{
		Model:     header.Model,
		Optimizer: header.Optimizer,
		Epoch:     header.Epoch,
		Params:    param.NewStore(d),
		Metadata:  header.Metadata,
	}
	for _, e := range header.Entries {
		values := decodeFloats(data[e.Offset : e.Offset+e.Size])
		switch e.Group {
		case GroupParam:
			if err := c.Params.Add(param.ID(e.Name), values); err != nil {
				return nil, fmt.Errorf("checkpoint: %w", err)
			}
		case GroupOptimizer:
			if c.OptimizerState == nil {
				c.OptimizerState = make(map[string][]float32)
			}
			c.OptimizerState[e.Name] = values
		}
	}
	return c, nil
}

// Load reads the checkpoint at path, placing its parameters on d.
func Load(path string, d device.Device) (*Checkpoint, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is chosen by the user.
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open: %w", err)
	}
	defer f.Close() //nolint:errcheck // Read-only.

	return Read(bufio.NewReader(f), d)
}

func decodeFloats(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}
