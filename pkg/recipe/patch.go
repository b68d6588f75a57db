package recipe

import "strings"

// PatchToken is replaced by the patch name in file names and table names.
const PatchToken = "$patch"

// Patch substitutes PatchToken in the load and save fields and in the plot
// file names. The recipe is modified in place.
func (r *Recipe) Patch(name string) {
	if name == "" {
		return
	}
	sub := func(s string) string {
		return strings.ReplaceAll(s, PatchToken, name)
	}
	for i := range r.Load {
		r.Load[i].As = sub(r.Load[i].As)
		r.Load[i].Path = sub(r.Load[i].Path)
	}
	for i := range r.Save {
		r.Save[i].As = sub(r.Save[i].As)
	}
	for i := range r.Plot {
		if r.Plot[i].Save != nil {
			r.Plot[i].Save.As = sub(r.Plot[i].Save.As)
		}
	}
}
