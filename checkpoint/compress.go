package checkpoint

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the container codec used by Save.
type Compression uint8

const (
	// None stores plain text.
	None Compression = 0
	// LZ4 stores an lz4 block.
	LZ4 Compression = 1
	// Zstd stores a zstd frame.
	Zstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// ParseCompression parses the names produced by Compression.String.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	}
	return None, fmt.Errorf("checkpoint: unknown compression %q", name)
}

// Container layout: [magic 4][codec 1][raw size uint64 LE][payload].
var containerMagic = []byte("LSCK")

const containerHeaderSize = 4 + 1 + 8

// maxRawSize bounds the decompressed size accepted from a header.
const maxRawSize = 1 << 34

// Upper bounds on the expansion of a payload. An lz4 block expands at most
// 255 times; a zstd RLE block turns 4 bytes into at most 128 KiB.
const (
	maxLZ4Ratio  = 255
	maxZstdRatio = 1 << 15
	maxZstdBlock = 1 << 17
)

var zstdEncoderPool sync.Pool

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

// Compress wraps text in a container. None returns text unchanged.
func Compress(text []byte, c Compression) ([]byte, error) {
	var payload []byte
	switch c {
	case None:
		return text, nil
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(text)))
		n, err := lz4.CompressBlock(text, buf, nil)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			// Incompressible; stored raw.
			c, payload = None, text
			break
		}
		payload = buf[:n]
	case Zstd:
		enc := getZstdEncoder()
		payload = enc.EncodeAll(text, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("checkpoint: unknown compression %d", uint8(c))
	}

	out := make([]byte, containerHeaderSize, containerHeaderSize+len(payload))
	copy(out, containerMagic)
	out[4] = byte(c)
	binary.LittleEndian.PutUint64(out[5:], uint64(len(text)))
	return append(out, payload...), nil
}

// Decompress returns the text inside a container, or data itself if it is
// not a container.
func Decompress(data []byte) ([]byte, Compression, error) {
	if !bytes.HasPrefix(data, containerMagic) {
		return data, None, nil
	}
	if len(data) < containerHeaderSize {
		return nil, None, fmt.Errorf("%w: truncated container header", ErrFormat)
	}
	c := Compression(data[4])
	size := binary.LittleEndian.Uint64(data[5:])
	if size > maxRawSize {
		return nil, c, fmt.Errorf("%w: container size %d too large", ErrFormat, size)
	}
	payload := data[containerHeaderSize:]

	switch c {
	case None:
		if uint64(len(payload)) != size {
			return nil, c, fmt.Errorf("%w: stored size mismatch", ErrFormat)
		}
		return payload, c, nil
	case LZ4:
		if size > maxLZ4Ratio*uint64(len(payload))+16 {
			return nil, c, fmt.Errorf("%w: container size %d exceeds lz4 bound", ErrFormat, size)
		}
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, c, fmt.Errorf("%w: lz4: %v", ErrFormat, err)
		}
		if uint64(n) != size {
			return nil, c, fmt.Errorf("%w: decompressed size mismatch", ErrFormat)
		}
		return out, c, nil
	case Zstd:
		if size > maxZstdRatio*uint64(len(payload))+maxZstdBlock {
			return nil, c, fmt.Errorf("%w: container size %d exceeds zstd bound", ErrFormat, size)
		}
		// The decoder output is bounded by the header, not by the frame's own
		// content size.
		dec, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(max(size, 1<<20)),
		)
		if err != nil {
			return nil, c, err
		}
		defer dec.Close()
		out, err := dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, c, fmt.Errorf("%w: zstd: %v", ErrFormat, err)
		}
		if uint64(len(out)) != size {
			return nil, c, fmt.Errorf("%w: decompressed size mismatch", ErrFormat)
		}
		return out, c, nil
	}
	return nil, c, fmt.Errorf("%w: unknown codec %d", ErrFormat, uint8(c))
}
