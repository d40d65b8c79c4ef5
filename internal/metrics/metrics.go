// Package metrics aggregates the hot spots of many projects into per hot
// spot statistics, to find the files and checks slowing down a whole
// repository rather than a single project.
package metrics

import (
	"errors"
	"math"
	"sort"

	"github.com/getsentry/hotspots/internal/highlight"
)

type Key struct {
	Label string
	Path  string
}

type HotSpotMetadata struct {
	MaxVal   int
	Worst    string
	Examples []string
}

type Aggregator struct {
	MaxUniqueHotSpots uint
	MaxNumOfExamples  uint
	DurationsMS       map[Key][]int
	SumMS             map[Key]int
	HotSpotsMetadata  map[Key]HotSpotMetadata
}

type HotSpotMetrics struct {
	Label    string   `json:"label"`
	Path     string   `json:"path,omitempty"`
	P75      int      `json:"p75_ms"`
	P95      int      `json:"p95_ms"`
	P99      int      `json:"p99_ms"`
	Avg      float64  `json:"avg_ms"`
	Sum      int      `json:"sum_ms"`
	Count    int      `json:"count"`
	Worst    string   `json:"worst"`
	Examples []string `json:"examples"`
}

func NewAggregator(maxUniqueHotSpots uint, maxNumOfExamples uint) Aggregator {
	return Aggregator{
		MaxUniqueHotSpots: maxUniqueHotSpots,
		MaxNumOfExamples:  maxNumOfExamples,
		DurationsMS:       make(map[Key][]int),
		SumMS:             make(map[Key]int),
		HotSpotsMetadata:  make(map[Key]HotSpotMetadata),
	}
}

// AddReport records the hot spots of the report of project. Hot spots of a
// report sharing a label and a path count as one, with their durations
// summed.
func (ma *Aggregator) AddReport(report *highlight.Report, project string) {
	if report == nil {
		return
	}
	durations := make(map[Key]int)
	var keys []Key
	for _, h := range report.HotSpots {
		h.Walk(func(n *highlight.Node) {
			k := Key{Label: n.Label, Path: n.Path}
			if _, ok := durations[k]; !ok {
				keys = append(keys, k)
			}
			durations[k] += n.DurationMS
		})
	}
	for _, k := range keys {
		d := durations[k]
		ma.DurationsMS[k] = append(ma.DurationsMS[k], d)
		ma.SumMS[k] += d
		md, ok := ma.HotSpotsMetadata[k]
		if !ok {
			ma.HotSpotsMetadata[k] = HotSpotMetadata{
				MaxVal:   d,
				Worst:    project,
				Examples: []string{project},
			}
			continue
		}
		if d > md.MaxVal {
			md.MaxVal = d
			md.Worst = project
		}
		if len(md.Examples) < int(ma.MaxNumOfExamples) {
			md.Examples = append(md.Examples, project)
		}
		ma.HotSpotsMetadata[k] = md
	}
}

// ToMetrics returns the statistics of the hot spots with the largest total
// duration first.
func (ma *Aggregator) ToMetrics() []HotSpotMetrics {
	metrics := make([]HotSpotMetrics, 0, len(ma.DurationsMS))
	for k, durations := range ma.DurationsMS {
		sort.Ints(durations)
		p75, _ := quantile(durations, 0.75)
		p95, _ := quantile(durations, 0.95)
		p99, _ := quantile(durations, 0.99)
		md := ma.HotSpotsMetadata[k]
		metrics = append(metrics, HotSpotMetrics{
			Label:    k.Label,
			Path:     k.Path,
			P75:      p75,
			P95:      p95,
			P99:      p99,
			Avg:      float64(ma.SumMS[k]) / float64(len(durations)),
			Sum:      ma.SumMS[k],
			Count:    len(durations),
			Worst:    md.Worst,
			Examples: md.Examples,
		})
	}
	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].Sum != metrics[j].Sum {
			return metrics[i].Sum > metrics[j].Sum
		}
		if metrics[i].Label != metrics[j].Label {
			return metrics[i].Label < metrics[j].Label
		}
		return metrics[i].Path < metrics[j].Path
	})
	if len(metrics) > int(ma.MaxUniqueHotSpots) {
		metrics = metrics[:ma.MaxUniqueHotSpots]
	}
	return metrics
}

func quantile(values []int, q float64) (int, error) {
	if len(values) == 0 {
		return 0, errors.New("cannot compute percentile from empty list")
	}
	if q <= 0 || q > 1 {
		return 0, errors.New("q must be a value between 0 and 1.0")
	}
	index := int(math.Ceil(float64(len(values))*q)) - 1
	return values[index], nil
}
