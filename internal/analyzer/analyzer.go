// Package analyzer runs the whole pipeline, from trace and types files to
// a report, for one project or for every project of a trace directory.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gocloud.dev/blob"
	"golang.org/x/sync/errgroup"

	"github.com/getsentry/hotspots/internal/config"
	"github.com/getsentry/hotspots/internal/highlight"
	"github.com/getsentry/hotspots/internal/logutil"
	"github.com/getsentry/hotspots/internal/nodetree"
	"github.com/getsentry/hotspots/internal/packageutil"
	"github.com/getsentry/hotspots/internal/storageutil"
	"github.com/getsentry/hotspots/internal/traceevent"
	"github.com/getsentry/hotspots/internal/typegraph"
)

type (
	Options struct {
		// Skip drops spans shorter than it while parsing.
		Skip time.Duration
		// Force keeps every span at least this long.
		Force                     time.Duration
		MinPercentage             float64
		ImportExpressionThreshold int
		ExpandTypes               bool
		// Workers bounds the number of projects analyzed at once, zero
		// picks one less than the number of CPUs.
		Workers int
		// Verbose keeps the per-project debug logs of directory analysis.
		Verbose bool

		Sources   highlight.SourceOpener
		Manifests packageutil.ManifestReader
	}

	Project struct {
		Name      string `json:"name"`
		TracePath string `json:"trace_path"`
		TypesPath string `json:"types_path,omitempty"`
	}

	Result struct {
		Project    Project           `json:"project"`
		AnalysisID string            `json:"analysis_id"`
		Report     *highlight.Report `json:"report,omitempty"`
		Err        error             `json:"-"`
	}
)

func OptionsFromConfig(c config.Config) Options {
	return Options{
		Skip:                      c.SkipDuration(),
		Force:                     c.ForceDuration(),
		MinPercentage:             c.MinPercentage,
		ImportExpressionThreshold: c.ImportExpressionThreshold,
		ExpandTypes:               c.ExpandTypes,
		Workers:                   c.Workers,
		Sources:                   highlight.FileSourceOpener{},
		Manifests:                 packageutil.FileManifestReader{},
	}
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return max(1, runtime.NumCPU()-1)
}

func microseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Microsecond)
}

// AnalyzeTrace builds the report of one trace. types may be nil.
func AnalyzeTrace(ctx context.Context, trace io.Reader, types *typegraph.Graph, opts Options) (*highlight.Report, error) {
	_, report, err := AnalyzeTraceTree(ctx, trace, types, opts)
	return report, err
}

// AnalyzeTraceTree is AnalyzeTrace also returning the hot path tree the
// report was assembled from.
func AnalyzeTraceTree(ctx context.Context, trace io.Reader, types *typegraph.Graph, opts Options) (*nodetree.Node, *highlight.Report, error) {
	result, err := traceevent.Parse(trace, traceevent.Options{MinDuration: microseconds(opts.Skip)})
	if err != nil {
		return nil, nil, err
	}
	tree := nodetree.Build(nodetree.WithUnterminated(result), result.MinTime, result.MaxTime, nodetree.Thresholds{
		ThresholdDuration: microseconds(opts.Force),
		MinPercentage:     opts.MinPercentage,
	})
	return tree, highlight.Assemble(ctx, tree, result, highlight.Options{
		ImportExpressionThreshold: opts.ImportExpressionThreshold,
		ExpandTypes:               opts.ExpandTypes,
		Types:                     types,
		Sources:                   opts.Sources,
		Manifests:                 opts.Manifests,
	}), nil
}

// AnalyzeProject reads the trace and types files of p from b and builds
// its report. A missing types file only leaves the type trees out.
func AnalyzeProject(ctx context.Context, b *blob.Bucket, p Project, opts Options) (*highlight.Report, error) {
	logger := zerolog.Ctx(ctx)

	var types *typegraph.Graph
	if p.TypesPath != "" {
		var err error
		types, err = LoadTypes(ctx, b, p.TypesPath)
		if errors.Is(err, storageutil.ErrObjectNotFound) {
			logger.Debug().Str("types_path", p.TypesPath).Msg("types file not found, leaving types out")
		} else if err != nil {
			return nil, err
		}
	}

	r, err := storageutil.NewReader(ctx, b, p.TracePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	report, err := AnalyzeTrace(ctx, r, types, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.TracePath, err)
	}
	return report, nil
}

func LoadTypes(ctx context.Context, b *blob.Bucket, key string) (*typegraph.Graph, error) {
	r, err := storageutil.NewReader(ctx, b, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	types, err := typegraph.LoadGraph(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return types, nil
}

// AnalyzeDir analyzes every project found under prefix in b. A project
// failing doesn't stop the others, its error is returned in its result.
// Failures come first, by project name, then reports from the slowest hot
// spot down.
func AnalyzeDir(ctx context.Context, b *blob.Bucket, prefix string, opts Options) ([]Result, error) {
	projects, err := Discover(ctx, b, prefix)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(projects))
	scheduled := make([]bool, len(projects))
	var g errgroup.Group
	g.SetLimit(opts.workers())
	for i, p := range projects {
		if ctx.Err() != nil {
			break
		}
		scheduled[i] = true
		i, p := i, p
		g.Go(func() error {
			results[i] = analyzeOne(ctx, b, p, opts)
			return nil
		})
	}
	_ = g.Wait()

	done := results[:0]
	for i, r := range results {
		if scheduled[i] {
			done = append(done, r)
		}
	}
	SortResults(done)
	return done, ctx.Err()
}

func analyzeOne(ctx context.Context, b *blob.Bucket, p Project, opts Options) Result {
	id := uuid.New().String()
	logger := log.With().Str("analysis_id", id).Str("project", p.Name).Logger()
	if !opts.Verbose {
		logger = logger.Sample(logutil.LevelSampler{Level: zerolog.InfoLevel})
	}
	report, err := AnalyzeProject(logger.WithContext(ctx), b, p, opts)
	if err != nil {
		logger.Error().Err(err).Msg("project analysis failed")
		hub := sentry.CurrentHub().Clone()
		hub.Scope().SetTag("analysis_id", id)
		hub.Scope().SetTag("project", p.Name)
		hub.CaptureException(err)
	}
	return Result{Project: p, AnalysisID: id, Report: report, Err: err}
}

func (r Result) MarshalJSON() ([]byte, error) {
	type result Result
	var message string
	if r.Err != nil {
		message = r.Err.Error()
	}
	return json.Marshal(struct {
		result
		Error string `json:"error,omitempty"`
	}{result: result(r), Error: message})
}
