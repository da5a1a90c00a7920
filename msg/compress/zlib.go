package compress

import (
	"bytes"
	"compress/zlib"
	"io"

	"github.com/mongowire/mongowire/internal"
)

func init() {
	register(NewZLibCompressor())
}

// NewZLibCompressor creates a new compressor using the zlib format.
func NewZLibCompressor() Compressor {
	return &zlibCompressor{-1}
}

// NewZLibCompressorWithLevel creates a new compressor using the zlib
// format at the specified level.
func NewZLibCompressorWithLevel(level int) Compressor {
	return &zlibCompressor{level}
}

type zlibCompressor struct {
	level int
}

func (c *zlibCompressor) ID() uint8 {
	return 2
}

func (c *zlibCompressor) Name() string {
	return "zlib"
}

func (c *zlibCompressor) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	var zlibWriter io.WriteCloser
	if c.level < 0 {
		zlibWriter = zlib.NewWriter(&buf)
	} else {
		var err error
		zlibWriter, err = zlib.NewWriterLevel(&buf, c.level)
		if err != nil {
			return nil, err
		}
	}

	if _, err := zlibWriter.Write(src); err != nil {
		zlibWriter.Close()
		return nil, err
	}
	if err := zlibWriter.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (c *zlibCompressor) Decompress(src []byte, uncompressedSize int32) ([]byte, error) {
	zlibReader, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, internal.WrapError(err, "failed creating zlib reader")
	}
	defer zlibReader.Close()

	dst := make([]byte, uncompressedSize)
	if _, err := io.ReadFull(zlibReader, dst); err != nil {
		return nil, internal.WrapError(err, "failed decompressing using zlib")
	}

	return dst, nil
}
