package framework

// CodeVolume is an additive size aggregate. Every component is summed
// independently when two volumes are combined.
type CodeVolume struct {
	Lines int64 `json:"lines"`
	Bytes int64 `json:"bytes"`
	Files int64 `json:"files"`
}

// Add returns the component-wise sum of v and o.
func (v CodeVolume) Add(o CodeVolume) CodeVolume {
	return CodeVolume{
		Lines: v.Lines + o.Lines,
		Bytes: v.Bytes + o.Bytes,
		Files: v.Files + o.Files,
	}
}

// IsZero reports whether no file contributed to the volume.
func (v CodeVolume) IsZero() bool {
	return v == CodeVolume{}
}

// SumVolumes adds every value of an extension breakdown.
func SumVolumes(m map[string]CodeVolume) CodeVolume {
	var total CodeVolume
	for _, v := range m {
		total = total.Add(v)
	}
	return total
}
