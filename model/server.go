package model

import (
	"fmt"
	"time"

	"github.com/mongowire/mongowire/internal"
	"gopkg.in/mgo.v2/bson"
)

// UnsetRTT is the unset value for a round trip time.
const UnsetRTT = -1 * time.Millisecond

// Server is a description of a server.
type Server struct {
	Addr Addr

	AverageRTT         time.Duration
	AverageRTTSet      bool
	CanonicalAddr      Addr
	Compression        []string
	ElectionID         bson.ObjectId
	GitVersion         string
	HeartbeatInterval  time.Duration
	LastError          error
	LastUpdateTime     time.Time
	LastWriteTime      time.Time
	MaxBatchCount      uint32
	MaxDocumentSize    uint32
	MaxMessageSize     uint32
	Members            []Addr
	ReadOnly           bool
	SaslSupportedMechs []string
	SetName            string
	SetVersion         uint32
	Tags               TagSet
	Kind               ServerKind
	WireVersion        Range
	Version            Version
}

// SetAverageRTT sets the average round trip time.
func (s *Server) SetAverageRTT(rtt time.Duration) {
	s.AverageRTT = rtt
	if rtt == UnsetRTT {
		s.AverageRTTSet = false
	} else {
		s.AverageRTTSet = true
	}
}

// DataBearing indicates whether the server is a type
// that can service user operations.
func (s *Server) DataBearing() bool {
	return s.Kind == RSPrimary ||
		s.Kind == RSSecondary ||
		s.Kind == Mongos ||
		s.Kind == Standalone
}

// BuildServer builds a model.Server from an address, an IsMasterResult, and a
// BuildInfoResult.
func BuildServer(addr Addr, isMasterResult *internal.IsMasterResult, buildInfoResult *internal.BuildInfoResult) *Server {
	s := &Server{
		Addr: addr,

		CanonicalAddr:      Addr(isMasterResult.Me).Canonicalize(),
		Compression:        isMasterResult.Compression,
		ElectionID:         isMasterResult.ElectionID,
		GitVersion:         buildInfoResult.GitVersion,
		LastUpdateTime:     time.Now().UTC(),
		LastWriteTime:      isMasterResult.LastWriteTimestamp,
		MaxBatchCount:      isMasterResult.MaxWriteBatchSize,
		MaxDocumentSize:    isMasterResult.MaxBSONObjectSize,
		MaxMessageSize:     isMasterResult.MaxMessageSizeBytes,
		ReadOnly:           isMasterResult.ReadOnly,
		SaslSupportedMechs: isMasterResult.SaslSupportedMechs,
		SetName:            isMasterResult.SetName,
		SetVersion:         isMasterResult.SetVersion,
		Tags:               NewTagSetFromMap(isMasterResult.Tags),
		Version: Version{
			Desc:  buildInfoResult.Version,
			Parts: buildInfoResult.VersionArray,
		},
		WireVersion: Range{
			Min: isMasterResult.MinWireVersion,
			Max: isMasterResult.MaxWireVersion,
		},
	}

	if s.CanonicalAddr == "" {
		s.CanonicalAddr = addr
	}

	if !isMasterResult.OK {
		s.LastError = fmt.Errorf("not ok")
		return s
	}

	for _, host := range isMasterResult.Hosts {
		s.Members = append(s.Members, Addr(host).Canonicalize())
	}

	for _, passive := range isMasterResult.Passives {
		s.Members = append(s.Members, Addr(passive).Canonicalize())
	}

	for _, arbiter := range isMasterResult.Arbiters {
		s.Members = append(s.Members, Addr(arbiter).Canonicalize())
	}

	s.Kind = Standalone

	if isMasterResult.IsReplicaSet {
		s.Kind = RSGhost
	} else if isMasterResult.SetName != "" {
		if isMasterResult.IsMaster {
			s.Kind = RSPrimary
		} else if isMasterResult.Hidden {
			s.Kind = RSMember
		} else if isMasterResult.Secondary {
			s.Kind = RSSecondary
		} else if isMasterResult.ArbiterOnly {
			s.Kind = RSArbiter
		} else {
			s.Kind = RSMember
		}
	} else if isMasterResult.Msg == "isdbgrid" {
		s.Kind = Mongos
	}

	return s
}
