package resilience

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/dshills/gochunk/pkg/types"
)

const (
	// CheckpointVersion is the body format written by this package
	CheckpointVersion = 1

	checkpointMagic = "GCK1"
	headerSize      = len(checkpointMagic) + sha256.Size
)

// ErrCorruptCheckpoint marks a checkpoint whose framing or checksum is invalid
var ErrCorruptCheckpoint = errors.New("corrupt checkpoint")

// Checkpoint is a durable snapshot of an in-progress run
type Checkpoint[T any] struct {
	Version   int                `json:"version"`
	RunID     string             `json:"run_id"`
	Sequence  uint64             `json:"sequence"`
	Processed int64              `json:"processed"` // Elements consumed from the input
	Emitted   int                `json:"emitted"`   // Chunks already delivered
	Buffer    []T                `json:"buffer"`    // Elements consumed but not yet delivered
	Params    map[string]float64 `json:"params"`
	Strategy  string             `json:"strategy"`
	CreatedAt time.Time          `json:"created_at"`
}

// codec frames checkpoints as magic + sha256(body) + zstd(json)
type codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newCodec() (*codec, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &codec{enc: enc, dec: dec}, nil
}

func (c *codec) close() {
	_ = c.enc.Close()
	c.dec.Close()
}

func encodeCheckpoint[T any](c *codec, cp *Checkpoint[T]) ([]byte, error) {
	body, err := json.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	compressed := c.enc.EncodeAll(body, nil)
	sum := sha256.Sum256(compressed)

	out := make([]byte, 0, headerSize+len(compressed))
	out = append(out, checkpointMagic...)
	out = append(out, sum[:]...)
	return append(out, compressed...), nil
}

func decodeCheckpoint[T any](c *codec, data []byte) (*Checkpoint[T], error) {
	if len(data) < headerSize || string(data[:len(checkpointMagic)]) != checkpointMagic {
		return nil, fmt.Errorf("%w: bad header", ErrCorruptCheckpoint)
	}

	want := data[len(checkpointMagic):headerSize]
	compressed := data[headerSize:]
	sum := sha256.Sum256(compressed)
	if !bytes.Equal(want, sum[:]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptCheckpoint)
	}

	body, err := c.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCheckpoint, err)
	}

	var cp Checkpoint[T]
	if err := json.Unmarshal(body, &cp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCheckpoint, err)
	}
	if cp.Version != CheckpointVersion {
		return nil, fmt.Errorf("unsupported checkpoint version %d: %w", cp.Version, types.ErrResilience)
	}
	return &cp, nil
}
