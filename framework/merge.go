package framework

import "fmt"

// Merge combines two infos without mutating either. Volumes are added,
// extension keys are unioned with shared keys added, and errors are
// concatenated a then b.
func Merge(a, b ProjectInfo) ProjectInfo {
	out := a.Clone()
	out.Volume = out.Volume.Add(b.Volume)
	for ext, vol := range b.ExtensionsVolume {
		out.ExtensionsVolume[ext] = out.ExtensionsVolume[ext].Add(vol)
	}
	out.Errors = append(out.Errors, b.Errors...)
	return out
}

// MergeProject folds a project's info into acc, prefixing each of its errors
// with the project title.
func MergeProject(acc ProjectInfo, p Project) ProjectInfo {
	info := p.Info.Clone()
	for i, msg := range info.Errors {
		info.Errors[i] = fmt.Sprintf("%s -> %s", p.Title, msg)
	}
	return Merge(acc, info)
}

// Fold merges the infos in order.
func Fold(infos ...ProjectInfo) ProjectInfo {
	acc := NewProjectInfo()
	for _, info := range infos {
		acc = Merge(acc, info)
	}
	return acc
}

// Summary splits cross-project totals by visibility.
type Summary struct {
	All     ProjectInfo `json:"all"`
	Public  ProjectInfo `json:"public"`
	Private ProjectInfo `json:"private"`
}

// Summarize reduces already-scanned projects into all/public/private totals.
// Errors, prefixed with their project title, are only collected under All.
func Summarize(projects []Project) Summary {
	s := Summary{
		All:     NewProjectInfo(),
		Public:  NewProjectInfo(),
		Private: NewProjectInfo(),
	}
	for _, p := range projects {
		s.All = MergeProject(s.All, p)
		volumeOnly := ProjectInfo{
			Volume:           p.Info.Volume,
			ExtensionsVolume: p.Info.ExtensionsVolume,
		}
		if p.IsPublic {
			s.Public = Merge(s.Public, volumeOnly)
		} else {
			s.Private = Merge(s.Private, volumeOnly)
		}
	}
	return s
}
