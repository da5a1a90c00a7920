package conn

import "github.com/mongowire/mongowire/model"

// Desc contains a description of a connection, built during the
// handshake with the server.
type Desc struct {
	Addr                model.Addr
	GitVersion          string
	Version             model.Version
	Compression         []string
	SaslSupportedMechs  []string
	MaxBSONObjectSize   uint32
	MaxMessageSizeBytes uint32
	MaxWriteBatchSize   uint32
	WireVersion         model.Range
	ReadOnly            bool
}
