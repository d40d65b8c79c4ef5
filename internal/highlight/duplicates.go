package highlight

import (
	"sort"

	"github.com/getsentry/hotspots/internal/packageutil"
)

// DuplicatePackages lists the packages loaded from more than one
// directory, with the version installed in each when its manifest can be
// read.
func DuplicatePackages(paths map[string]map[string]struct{}, manifests packageutil.ManifestReader) []DuplicatePackage {
	var duplicates []DuplicatePackage
	for name, dirs := range paths {
		if len(dirs) < 2 {
			continue
		}
		d := DuplicatePackage{Name: name, Instances: make([]PackageInstance, 0, len(dirs))}
		for dir := range dirs {
			instance := PackageInstance{Path: dir}
			if manifests != nil {
				instance.Version, _ = manifests.Version(dir)
			}
			d.Instances = append(d.Instances, instance)
		}
		sort.Slice(d.Instances, func(i, j int) bool {
			return d.Instances[i].Path < d.Instances[j].Path
		})
		duplicates = append(duplicates, d)
	}
	sort.Slice(duplicates, func(i, j int) bool {
		return duplicates[i].Name < duplicates[j].Name
	})
	return duplicates
}
