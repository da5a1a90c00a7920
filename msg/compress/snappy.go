package compress

import (
	"github.com/golang/snappy"

	"github.com/mongowire/mongowire/internal"
)

func init() {
	register(NewSnappyCompressor())
}

// NewSnappyCompressor creates a new compressor using the snappy format.
func NewSnappyCompressor() Compressor {
	return &snappyCompressor{}
}

type snappyCompressor struct{}

func (c *snappyCompressor) ID() uint8 {
	return 1
}

func (c *snappyCompressor) Name() string {
	return "snappy"
}

func (c *snappyCompressor) Compress(src []byte) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

func (c *snappyCompressor) Decompress(src []byte, uncompressedSize int32) ([]byte, error) {
	dst, err := snappy.Decode(make([]byte, uncompressedSize), src)
	if err != nil {
		return nil, internal.WrapError(err, "failed decompressing using snappy")
	}

	return dst, nil
}
