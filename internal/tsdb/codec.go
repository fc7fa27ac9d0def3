package tsdb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"
)

var errCorruptBlock = errors.New("tsdb: corrupt block")

// codec packs a block of samples: timestamps are delta-of-delta varints,
// values are XORed against their predecessor, and the whole buffer is zstd
// compressed.
type codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newCodec(level int) (*codec, error) {
	encLevel := zstd.SpeedDefault
	switch level {
	case 1:
		encLevel = zstd.SpeedFastest
	case 3:
		encLevel = zstd.SpeedBetterCompression
	case 4:
		encLevel = zstd.SpeedBestCompression
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	return &codec{encoder: encoder, decoder: decoder}, nil
}

func (c *codec) encode(samples []Sample) []byte {
	buf := make([]byte, 0, 4+len(samples)*12)
	buf = binary.AppendUvarint(buf, uint64(len(samples)))

	var prevTS, prevDelta int64
	var prevBits uint64
	for i, s := range samples {
		ts := s.Timestamp.UnixMilli()
		bits := math.Float64bits(s.Value)
		if i == 0 {
			buf = binary.AppendVarint(buf, ts)
			buf = binary.AppendUvarint(buf, bits)
		} else {
			delta := ts - prevTS
			buf = binary.AppendVarint(buf, delta-prevDelta)
			buf = binary.AppendUvarint(buf, bits^prevBits)
			prevDelta = delta
		}
		prevTS = ts
		prevBits = bits
	}
	return c.encoder.EncodeAll(buf, nil)
}

func (c *codec) decode(data []byte) ([]Sample, error) {
	raw, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompression failed: %w", err)
	}

	count, n := binary.Uvarint(raw)
	if n <= 0 {
		return nil, errCorruptBlock
	}
	raw = raw[n:]

	samples := make([]Sample, 0, count)
	var prevTS, prevDelta int64
	var prevBits uint64
	for i := uint64(0); i < count; i++ {
		v, n := binary.Varint(raw)
		if n <= 0 {
			return nil, errCorruptBlock
		}
		raw = raw[n:]
		b, n := binary.Uvarint(raw)
		if n <= 0 {
			return nil, errCorruptBlock
		}
		raw = raw[n:]

		var ts int64
		var bits uint64
		if i == 0 {
			ts, bits = v, b
		} else {
			delta := prevDelta + v
			ts = prevTS + delta
			bits = prevBits ^ b
			prevDelta = delta
		}
		samples = append(samples, Sample{Timestamp: timeFromMillis(ts), Value: math.Float64frombits(bits)})
		prevTS, prevBits = ts, bits
	}
	return samples, nil
}

func (c *codec) close() {
	c.encoder.Close()
	c.decoder.Close()
}
