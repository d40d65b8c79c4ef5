package metrics

import (
	"testing"

	"github.com/getsentry/hotspots/internal/highlight"
	"github.com/getsentry/hotspots/internal/testutil"
)

func report(nodes ...*highlight.Node) *highlight.Report {
	return &highlight.Report{HotSpots: nodes}
}

func TestAggregatorAddReport(t *testing.T) {
	checkA := Key{Label: "Check file", Path: "/a.ts"}
	expr := Key{Label: "Check expression", Path: "/a.ts"}

	ma := NewAggregator(100, 2)
	ma.AddReport(report(
		&highlight.Node{Label: "Check file", Path: "/a.ts", DurationMS: 300, Children: []*highlight.Node{
			{Label: "Check expression", Path: "/a.ts", DurationMS: 120},
			{Label: "Check expression", Path: "/a.ts", DurationMS: 80},
		}},
	), "web")
	ma.AddReport(report(
		&highlight.Node{Label: "Check file", Path: "/a.ts", DurationMS: 500},
	), "api")
	ma.AddReport(report(
		&highlight.Node{Label: "Check file", Path: "/a.ts", DurationMS: 100},
	), "docs")
	ma.AddReport(nil, "failed")

	want := Aggregator{
		MaxUniqueHotSpots: 100,
		MaxNumOfExamples:  2,
		DurationsMS: map[Key][]int{
			checkA: {300, 500, 100},
			expr:   {200},
		},
		SumMS: map[Key]int{
			checkA: 900,
			expr:   200,
		},
		HotSpotsMetadata: map[Key]HotSpotMetadata{
			checkA: {MaxVal: 500, Worst: "api", Examples: []string{"web", "api"}},
			expr:   {MaxVal: 200, Worst: "web", Examples: []string{"web"}},
		},
	}
	if diff := testutil.Diff(ma, want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}

func TestAggregatorToMetrics(t *testing.T) {
	tests := []struct {
		name       string
		aggregator Aggregator
		want       []HotSpotMetrics
	}{
		{
			name: "sorted by sum then label",
			aggregator: Aggregator{
				MaxUniqueHotSpots: 100,
				DurationsMS: map[Key][]int{
					{Label: "b"}:             {1, 2, 3, 4, 10, 8, 7, 11, 20},
					{Label: "a"}:             {20, 11, 7, 8, 10, 4, 3, 2, 1},
					{Label: "c", Path: "/c"}: {500},
				},
				SumMS: map[Key]int{
					{Label: "b"}:             66,
					{Label: "a"}:             66,
					{Label: "c", Path: "/c"}: 500,
				},
				HotSpotsMetadata: map[Key]HotSpotMetadata{
					{Label: "b"}:             {MaxVal: 20, Worst: "3", Examples: []string{"1", "3"}},
					{Label: "a"}:             {MaxVal: 20, Worst: "1", Examples: []string{"1", "2"}},
					{Label: "c", Path: "/c"}: {MaxVal: 500, Worst: "9", Examples: []string{"9"}},
				},
			},
			want: []HotSpotMetrics{
				{
					Label:    "c",
					Path:     "/c",
					P75:      500,
					P95:      500,
					P99:      500,
					Avg:      500,
					Sum:      500,
					Count:    1,
					Worst:    "9",
					Examples: []string{"9"},
				},
				{
					Label:    "a",
					P75:      10,
					P95:      20,
					P99:      20,
					Avg:      float64(66) / float64(9),
					Sum:      66,
					Count:    9,
					Worst:    "1",
					Examples: []string{"1", "2"},
				},
				{
					Label:    "b",
					P75:      10,
					P95:      20,
					P99:      20,
					Avg:      float64(66) / float64(9),
					Sum:      66,
					Count:    9,
					Worst:    "3",
					Examples: []string{"1", "3"},
				},
			},
		},
		{
			name: "truncated",
			aggregator: Aggregator{
				MaxUniqueHotSpots: 1,
				DurationsMS:       map[Key][]int{{Label: "a"}: {5}, {Label: "b"}: {7}},
				SumMS:             map[Key]int{{Label: "a"}: 5, {Label: "b"}: 7},
				HotSpotsMetadata: map[Key]HotSpotMetadata{
					{Label: "a"}: {MaxVal: 5, Worst: "x", Examples: []string{"x"}},
					{Label: "b"}: {MaxVal: 7, Worst: "y", Examples: []string{"y"}},
				},
			},
			want: []HotSpotMetrics{
				{Label: "b", P75: 7, P95: 7, P99: 7, Avg: 7, Sum: 7, Count: 1, Worst: "y", Examples: []string{"y"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := tt.aggregator.ToMetrics()
			if diff := testutil.Diff(metrics, tt.want); diff != "" {
				t.Fatalf("Result mismatch: got - want +\n%s", diff)
			}
		})
	}
}

func TestQuantile(t *testing.T) {
	if _, err := quantile(nil, 0.5); err == nil {
		t.Fatal("expected an error for an empty list")
	}
	if _, err := quantile([]int{1}, 1.5); err == nil {
		t.Fatal("expected an error for q above 1")
	}
	got, err := quantile([]int{1, 2, 3, 4}, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}
