package model

import "strconv"

// NewVersion creates a new version from its numeric parts.
func NewVersion(parts ...uint8) Version {
	desc := ""
	for i, p := range parts {
		if i != 0 {
			desc += "."
		}
		desc += strconv.Itoa(int(p))
	}

	return Version{
		Desc:  desc,
		Parts: parts,
	}
}

// Version represents a software version.
type Version struct {
	Desc  string
	Parts []uint8
}

// AtLeast indicates whether the version is at least
// as large as the other version.
func (v *Version) AtLeast(other ...uint8) bool {
	for i := range other {
		if i == len(v.Parts) {
			return false
		}
		if v.Parts[i] < other[i] {
			return false
		}
	}
	return true
}

func (v *Version) String() string {
	return v.Desc
}
