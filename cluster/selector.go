package cluster

import (
	"fmt"
	"math"
	"time"

	"github.com/mongowire/mongowire/internal/feature"
	"github.com/mongowire/mongowire/model"
	"github.com/mongowire/mongowire/readpref"
)

// CompositeSelector combines multiple selectors into a single selector.
func CompositeSelector(selectors []ServerSelector) ServerSelector {
	return func(c *model.Cluster, candidates []*model.Server) ([]*model.Server, error) {
		var err error
		for _, sel := range selectors {
			candidates, err = sel(c, candidates)
			if err != nil {
				return nil, err
			}
		}
		return candidates, nil
	}
}

// LatencySelector creates a ServerSelector which selects servers based
// on their latency.
func LatencySelector(latency time.Duration) ServerSelector {
	return func(c *model.Cluster, candidates []*model.Server) ([]*model.Server, error) {
		return selectServersByLatency(latency, c, candidates)
	}
}

func selectServersByLatency(latency time.Duration, c *model.Cluster, candidates []*model.Server) ([]*model.Server, error) {
	if latency < 0 {
		return candidates, nil
	}

	switch len(candidates) {
	case 0, 1:
		return candidates, nil
	default:
		min := time.Duration(math.MaxInt64)
		for _, candidate := range candidates {
			if candidate.AverageRTTSet {
				if candidate.AverageRTT < min {
					min = candidate.AverageRTT
				}
			}
		}

		if min == math.MaxInt64 {
			return candidates, nil
		}

		max := min + latency

		var result []*model.Server
		for _, candidate := range candidates {
			if candidate.AverageRTTSet {
				if candidate.AverageRTT <= max {
					result = append(result, candidate)
				}
			}
		}

		return result, nil
	}
}

// WriteSelector selects all the writable servers.
func WriteSelector() ServerSelector {
	return func(c *model.Cluster, candidates []*model.Server) ([]*model.Server, error) {
		switch c.Kind {
		case model.Single:
			return candidates, nil
		default:
			var result []*model.Server
			for _, candidate := range candidates {
				switch candidate.Kind {
				case model.Mongos, model.RSPrimary, model.Standalone:
					result = append(result, candidate)
				}
			}
			return result, nil
		}
	}
}

// ReadPrefSelector selects servers based on the provided read
// preference.
func ReadPrefSelector(rp *readpref.ReadPref) ServerSelector {
	return func(c *model.Cluster, candidates []*model.Server) ([]*model.Server, error) {
		if _, set := rp.MaxStaleness(); set {
			for _, s := range candidates {
				if s.Kind != model.Unknown {
					if err := feature.MaxStaleness(s.Version); err != nil {
						return nil, err
					}
				}
			}
		}

		switch c.Kind {
		case model.Single:
			return candidates, nil
		case model.ReplicaSetNoPrimary, model.ReplicaSetWithPrimary:
			return selectForReplicaSet(rp, c, candidates)
		case model.Sharded:
			return selectByKind(candidates, model.Mongos), nil
		}

		return nil, nil
	}
}

func selectForReplicaSet(rp *readpref.ReadPref, c *model.Cluster, candidates []*model.Server) ([]*model.Server, error) {
	if err := verifyMaxStaleness(rp, c); err != nil {
		return nil, err
	}

	switch rp.Mode() {
	case readpref.PrimaryMode:
		return selectByKind(candidates, model.RSPrimary), nil
	case readpref.PrimaryPreferredMode:
		selected := selectByKind(candidates, model.RSPrimary)

		if len(selected) == 0 {
			selected = selectSecondaries(rp, candidates)
			return selectByTagSet(selected, rp.TagSets()), nil
		}

		return selected, nil
	case readpref.SecondaryPreferredMode:
		selected := selectSecondaries(rp, candidates)
		selected = selectByTagSet(selected, rp.TagSets())
		if len(selected) > 0 {
			return selected, nil
		}
		return selectByKind(candidates, model.RSPrimary), nil
	case readpref.SecondaryMode:
		selected := selectSecondaries(rp, candidates)
		return selectByTagSet(selected, rp.TagSets()), nil
	case readpref.NearestMode:
		selected := selectByKind(candidates, model.RSPrimary)
		selected = append(selected, selectSecondaries(rp, candidates)...)
		return selectByTagSet(selected, rp.TagSets()), nil
	}

	return nil, fmt.Errorf("unsupported mode: %d", rp.Mode())
}

func selectSecondaries(rp *readpref.ReadPref, candidates []*model.Server) []*model.Server {
	secondaries := selectByKind(candidates, model.RSSecondary)
	if len(secondaries) == 0 {
		return secondaries
	}
	if maxStaleness, set := rp.MaxStaleness(); set {
		primaries := selectByKind(candidates, model.RSPrimary)
		if len(primaries) == 0 {
			baseTime := secondaries[0].LastWriteTime
			for i := 1; i < len(secondaries); i++ {
				if secondaries[i].LastWriteTime.After(baseTime) {
					baseTime = secondaries[i].LastWriteTime
				}
			}

			var selected []*model.Server
			for _, secondary := range secondaries {
				estimatedStaleness := baseTime.Sub(secondary.LastWriteTime) + secondary.HeartbeatInterval
				if estimatedStaleness <= maxStaleness {
					selected = append(selected, secondary)
				}
			}

			return selected
		}

		primary := primaries[0]

		var selected []*model.Server
		for _, secondary := range secondaries {
			estimatedStaleness := secondary.LastUpdateTime.Sub(secondary.LastWriteTime) -
				primary.LastUpdateTime.Sub(primary.LastWriteTime) + secondary.HeartbeatInterval
			if estimatedStaleness <= maxStaleness {
				selected = append(selected, secondary)
			}
		}
		return selected
	}

	return secondaries
}

func selectByTagSet(candidates []*model.Server, tagSets []model.TagSet) []*model.Server {
	if len(tagSets) == 0 {
		return candidates
	}

	for _, ts := range tagSets {
		var results []*model.Server
		for _, s := range candidates {
			if len(s.Tags) > 0 && s.Tags.ContainsAll(ts) {
				results = append(results, s)
			}
		}

		if len(results) > 0 {
			return results
		}
	}

	return []*model.Server{}
}

func selectByKind(candidates []*model.Server, kind model.ServerKind) []*model.Server {
	var result []*model.Server
	for _, s := range candidates {
		if s.Kind == kind {
			result = append(result, s)
		}
	}

	return result
}

func verifyMaxStaleness(rp *readpref.ReadPref, c *model.Cluster) error {
	maxStaleness, set := rp.MaxStaleness()
	if !set {
		return nil
	}

	if maxStaleness < 90*time.Second {
		return fmt.Errorf("max staleness (%s) must be greater than or equal to 90s", maxStaleness)
	}

	if len(c.Servers) < 1 {
		return nil
	}

	// all candidates are assumed to share a heartbeat interval
	s := c.Servers[0]
	idleWritePeriod := 10 * time.Second

	if maxStaleness < s.HeartbeatInterval+idleWritePeriod {
		return fmt.Errorf(
			"max staleness (%s) must be greater than or equal to the heartbeat interval (%s) plus idle write period (%s)",
			maxStaleness, s.HeartbeatInterval, idleWritePeriod,
		)
	}

	return nil
}
