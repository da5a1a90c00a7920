package feature

import (
	"fmt"

	"github.com/mongowire/mongowire/model"
)

// MaxStaleness returns an error if the given server version
// does not support max staleness.
func MaxStaleness(version model.Version) error {
	if !version.AtLeast(3, 4, 0) {
		return fmt.Errorf("max staleness is only supported for servers 3.4 or newer")
	}

	return nil
}

// ScramSHA1 returns an error if the given server version
// does not support scram-sha-1.
func ScramSHA1(version model.Version) error {
	if !version.AtLeast(3, 0, 0) {
		return fmt.Errorf("SCRAM-SHA-1 is only supported for servers 3.0 or newer")
	}

	return nil
}

// ScramSHA256 returns an error if the given server version
// does not support scram-sha-256.
func ScramSHA256(version model.Version) error {
	if !version.AtLeast(4, 0, 0) {
		return fmt.Errorf("SCRAM-SHA-256 is only supported for servers 4.0 or newer")
	}

	return nil
}
