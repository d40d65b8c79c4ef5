package packageutil

import (
	"regexp"
	"strings"
)

const nodeModules = "/node_modules/"

var packageRegex = regexp.MustCompile(
	`^((?:@[^/]+/[^/]+)|(?:[^@./][^/]*))/`,
)

type PackageInfo struct {
	// Package is the package name, including its scope if any.
	Package string
	// Root is the directory the package was loaded from.
	Root string
}

// NodePackageFromPath extracts the package a file was loaded from. When
// packages are nested, the innermost one wins, so files inside a pnpm store
// (node_modules/.pnpm/x@1.0.0/node_modules/x) resolve to x.
func NodePackageFromPath(p string) (PackageInfo, bool) {
	p = strings.ReplaceAll(p, `\`, "/")
	for end := len(p); end > 0; {
		i := strings.LastIndex(p[:end], nodeModules)
		if i < 0 {
			break
		}
		start := i + len(nodeModules)
		if m := packageRegex.FindStringSubmatchIndex(p[start:]); m != nil {
			return PackageInfo{
				Package: p[start+m[2] : start+m[3]],
				Root:    p[:start+m[3]],
			}, true
		}
		end = i
	}
	return PackageInfo{}, false
}
