package pathing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"
)

// ErrBadCache reports a cache blob that cannot be trusted. It never
// reaches callers of Init; the blob is dropped and recomputed instead.
var ErrBadCache = errors.New("bad pathing cache")

// Blob layout before compression, all little endian:
//
//	[cache key: uint32]
//	[offsets: per class, per block: x uint16, z uint16]
//	[edge costs: per class, per block, per forward direction: float32]
const (
	blobHeaderSize = 4
	blobOffsetSize = 4
	blobCostSize   = 4
)

func (s *State) blobSize() int {
	n := len(s.classes.Classes) * s.grid.NumBlocks()
	return blobHeaderSize + n*blobOffsetSize + n*numStoredDirections*blobCostSize
}

// appendPayload serializes offsets then costs in fixed order.
func (s *State) appendPayload(buf []byte) []byte {
	for _, offs := range s.offsets {
		for _, o := range offs {
			buf = binary.LittleEndian.AppendUint16(buf, uint16(o.X))
			buf = binary.LittleEndian.AppendUint16(buf, uint16(o.Z))
		}
	}
	for _, c := range s.costs {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(c))
	}
	return buf
}

func (s *State) encode() ([]byte, error) {
	raw := make([]byte, 0, s.blobSize())
	raw = binary.LittleEndian.AppendUint32(raw, s.cacheKey)
	raw = s.appendPayload(raw)

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(raw, make([]byte, 0, len(raw)/4)), nil
}

// decode validates blob completely before replacing the tables.
func (s *State) decode(blob []byte) error {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(blob, nil)
	if err != nil {
		return fmt.Errorf("%w: decompress: %v", ErrBadCache, err)
	}
	if len(raw) != s.blobSize() {
		return fmt.Errorf("%w: size %d, want %d", ErrBadCache, len(raw), s.blobSize())
	}
	if key := binary.LittleEndian.Uint32(raw); key != s.cacheKey {
		return fmt.Errorf("%w: key %08x, want %08x", ErrBadCache, key, s.cacheKey)
	}
	pos := blobHeaderSize

	offsets := make([][]Square, len(s.classes.Classes))
	for cls := range offsets {
		offsets[cls] = make([]Square, s.grid.NumBlocks())
		for b := range offsets[cls] {
			sq := Square{
				X: int(binary.LittleEndian.Uint16(raw[pos:])),
				Z: int(binary.LittleEndian.Uint16(raw[pos+2:])),
			}
			pos += blobOffsetSize
			if !s.grid.BlockRect(s.grid.BlockAt(b)).Contains(sq) {
				return fmt.Errorf("%w: class %d block %d offset %v outside block", ErrBadCache, cls, b, sq)
			}
			offsets[cls][b] = sq
		}
	}

	costs := make([]float32, len(s.costs))
	for i := range costs {
		c := math.Float32frombits(binary.LittleEndian.Uint32(raw[pos:]))
		pos += blobCostSize
		if c < 0 || math.IsNaN(float64(c)) || c > PathCostInfinity {
			return fmt.Errorf("%w: edge %d has cost %v", ErrBadCache, i, c)
		}
		costs[i] = c
	}

	s.offsets = offsets
	s.costs = costs
	return nil
}
