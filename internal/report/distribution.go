// Package report analyzes generated collections: rarity distribution
// against the configured weights, duplicate signatures and tag coverage.
package report

import (
	"cmp"
	"math"
	"slices"

	"github.com/aretw0/strata/internal/runtime"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/montanaflynn/stats"
)

// Row compares how often one option was drawn with what its weight predicts.
type Row struct {
	Value    string  `json:"value"`
	Weight   float64 `json:"weight"`
	Actual   int     `json:"actual"`
	Expected float64 `json:"expected"`
	// ErrorPct is |actual-expected|/expected in percent; zero when nothing
	// was expected.
	ErrorPct float64 `json:"error_pct"`
}

// Bucket groups the rows of one weight table.
type Bucket struct {
	Category string `json:"category"`
	Context  string `json:"context,omitempty"`
	Draws    int    `json:"draws"`
	Rows     []Row  `json:"rows"`
}

// Summary aggregates the error of every row that had an expectation.
type Summary struct {
	Rows   int     `json:"rows"`
	Mean   float64 `json:"mean_error_pct"`
	Median float64 `json:"median_error_pct"`
	StdDev float64 `json:"stddev_error_pct"`
	Max    float64 `json:"max_error_pct"`
}

// Distribution is the rarity report of a collection.
type Distribution struct {
	Tokens  int      `json:"tokens"`
	Buckets []Bucket `json:"buckets"`
	Summary Summary  `json:"summary"`
}

// Analyze counts the options of every sample and compares each weight
// bucket with its expected share. Expectations are relative to the number
// of tokens that drew from the bucket, so contextual tables are judged
// against the tokens that could reach them.
func Analyze(p *runtime.Project, samples [][]domain.ItemKey) (*Distribution, error) {
	counts := make(map[domain.ItemKey]int)
	draws := make(map[domain.Bucket]int)
	for _, items := range samples {
		for _, it := range items {
			counts[it]++
			draws[domain.Bucket{Category: it.Category, Context: it.Context}]++
		}
	}

	tables := make(map[domain.Bucket][]domain.Option)
	for _, cat := range p.Index.Categories() {
		for _, o := range p.Index.Options(cat) {
			o.Weight = p.Rules.Weight(o)
			b := o.Bucket()
			tables[b] = append(tables[b], o)
		}
	}

	d := &Distribution{Tokens: len(samples)}
	var errs stats.Float64Data
	for b, opts := range tables {
		bucket := Bucket{Category: b.Category, Context: b.Context, Draws: draws[b]}
		total := 0.0
		for _, o := range opts {
			total += max(o.Weight, 0)
		}
		for _, o := range opts {
			row := Row{Value: o.Value, Weight: o.Weight, Actual: counts[o.Key()]}
			switch {
			case total > 0:
				row.Expected = float64(bucket.Draws) * max(o.Weight, 0) / total
			default:
				row.Expected = float64(bucket.Draws) / float64(len(opts))
			}
			if row.Expected > 0 {
				row.ErrorPct = math.Abs(float64(row.Actual)-row.Expected) / row.Expected * 100
				errs = append(errs, row.ErrorPct)
			}
			bucket.Rows = append(bucket.Rows, row)
		}
		slices.SortFunc(bucket.Rows, func(a, b Row) int { return cmp.Compare(a.Value, b.Value) })
		d.Buckets = append(d.Buckets, bucket)
	}
	slices.SortFunc(d.Buckets, func(a, b Bucket) int {
		return cmp.Or(cmp.Compare(a.Category, b.Category), cmp.Compare(a.Context, b.Context))
	})

	if len(errs) == 0 {
		return d, nil
	}
	sum, err := summarize(errs)
	if err != nil {
		return nil, err
	}
	d.Summary = sum
	return d, nil
}

func summarize(data stats.Float64Data) (Summary, error) {
	s := Summary{Rows: data.Len()}
	var err error
	if s.Mean, err = stats.Mean(data); err != nil {
		return s, err
	}
	if s.Median, err = stats.Median(data); err != nil {
		return s, err
	}
	if s.StdDev, err = stats.StandardDeviation(data); err != nil {
		return s, err
	}
	if s.Max, err = stats.Max(data); err != nil {
		return s, err
	}
	return s, nil
}
