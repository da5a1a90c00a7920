package compress

import "fmt"

// Compressor handles compressing and decompressing message bodies.
type Compressor interface {
	// ID is the wire identifier of the compressor.
	ID() uint8
	// Name is the name of the compressor as negotiated during the
	// connection handshake.
	Name() string
	// Compress compresses src and returns the compressed bytes.
	Compress(src []byte) ([]byte, error)
	// Decompress decompresses src. The uncompressed size is known from
	// the containing frame and is used to size the result.
	Decompress(src []byte, uncompressedSize int32) ([]byte, error)
}

// ByID returns the compressor registered for the wire identifier.
func ByID(id uint8) (Compressor, bool) {
	c, ok := byID[id]
	return c, ok
}

// ByName returns the compressor with the given negotiated name.
func ByName(name string) (Compressor, bool) {
	c, ok := byName[name]
	return c, ok
}

// Negotiate picks the first of the client's desired compressors that the
// server also supports. It returns nil when there is no overlap.
func Negotiate(desired, supported []string) Compressor {
	for _, name := range desired {
		for _, s := range supported {
			if name != s {
				continue
			}
			if c, ok := ByName(name); ok {
				return c
			}
		}
	}
	return nil
}

var byID = make(map[uint8]Compressor)
var byName = make(map[string]Compressor)

func register(c Compressor) {
	if _, ok := byID[c.ID()]; ok {
		panic(fmt.Sprintf("compressor id %d registered twice", c.ID()))
	}
	byID[c.ID()] = c
	byName[c.Name()] = c
}
