package analyzer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"gocloud.dev/blob"

	"github.com/getsentry/hotspots/internal/errorutil"
	"github.com/getsentry/hotspots/internal/storageutil"
)

// LegacyIndex lists the projects of a trace directory written by a build
// in multi-project mode.
const LegacyIndex = "legacy.json"

var traceFileRegex = regexp.MustCompile(`^trace(.*)\.json(\.lz4)?$`)

type legacyEntry struct {
	ConfigFilePath string `json:"configFilePath"`
	TracePath      string `json:"tracePath"`
	TypesPath      string `json:"typesPath"`
}

// Discover finds the projects traced under prefix. The legacy index is used
// when present, otherwise every trace file is a project, paired with the
// types file sharing its suffix.
func Discover(ctx context.Context, b *blob.Bucket, prefix string) ([]Project, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	projects, err := discoverLegacy(ctx, b, prefix)
	if err == nil {
		return projects, nil
	}
	if !errors.Is(err, storageutil.ErrObjectNotFound) {
		return nil, err
	}

	keys, err := storageutil.List(ctx, b, prefix)
	if err != nil {
		return nil, err
	}
	exists := make(map[string]bool, len(keys))
	for _, k := range keys {
		exists[k] = true
	}
	for _, k := range keys {
		m := traceFileRegex.FindStringSubmatch(path.Base(k))
		if m == nil {
			continue
		}
		p := Project{Name: k, TracePath: k}
		for _, ext := range []string{".json", ".json" + storageutil.CompressedExtension} {
			types := prefix + "types" + m[1] + ext
			if exists[types] {
				p.TypesPath = types
				break
			}
		}
		projects = append(projects, p)
	}
	return projects, nil
}

func discoverLegacy(ctx context.Context, b *blob.Bucket, prefix string) ([]Project, error) {
	r, err := storageutil.NewReader(ctx, b, prefix+LegacyIndex)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	var entries []legacyEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", LegacyIndex, errorutil.ErrMalformedInput, err)
	}
	projects := make([]Project, 0, len(entries))
	for _, e := range entries {
		if e.TracePath == "" {
			continue
		}
		p := Project{
			Name:      e.ConfigFilePath,
			TracePath: prefix + baseName(e.TracePath),
		}
		if p.Name == "" {
			p.Name = p.TracePath
		}
		if e.TypesPath != "" {
			p.TypesPath = prefix + baseName(e.TypesPath)
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// baseName returns the last element of a local path, whichever separator
// it was written with.
func baseName(p string) string {
	return path.Base(strings.ReplaceAll(p, `\`, "/"))
}

// SortResults orders failures first, by project name, then reports from
// the slowest hot spot down.
func SortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if (a.Err != nil) != (b.Err != nil) {
			return a.Err != nil
		}
		if a.Err != nil {
			return a.Project.Name < b.Project.Name
		}
		if sa, sb := a.Report.SlowestMS(), b.Report.SlowestMS(); sa != sb {
			return sa > sb
		}
		return a.Project.Name < b.Project.Name
	})
}
