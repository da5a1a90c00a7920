package model

// Tag is a single name/value pair from a replica set member's
// configured tags.
type Tag struct {
	Name  string
	Value string
}

// TagSet is an ordered list of Tags.
type TagSet []Tag

// NewTagSet builds a tag set from alternating names and values.
func NewTagSet(pairs ...string) TagSet {
	if len(pairs)%2 != 0 {
		panic("model.NewTagSet: argument count is odd")
	}

	set := make(TagSet, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		set = append(set, Tag{Name: pairs[i], Value: pairs[i+1]})
	}
	return set
}

// NewTagSetFromMap builds a tag set from a map. Order is not
// significant for matching.
func NewTagSetFromMap(m map[string]string) TagSet {
	set := make(TagSet, 0, len(m))
	for name, value := range m {
		set = append(set, Tag{Name: name, Value: value})
	}
	return set
}

// NewTagSetsFromMaps builds one tag set per map.
func NewTagSetsFromMaps(maps []map[string]string) []TagSet {
	sets := make([]TagSet, 0, len(maps))
	for _, m := range maps {
		sets = append(sets, NewTagSetFromMap(m))
	}
	return sets
}

// Contains indicates whether the name/value pair exists in the tag set.
func (ts TagSet) Contains(name, value string) bool {
	for _, t := range ts {
		if t.Name == name && t.Value == value {
			return true
		}
	}
	return false
}

// ContainsAll indicates whether every pair in other exists in the tag
// set. An empty other matches any set.
func (ts TagSet) ContainsAll(other []Tag) bool {
	for _, t := range other {
		if !ts.Contains(t.Name, t.Value) {
			return false
		}
	}
	return true
}
