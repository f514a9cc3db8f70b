package tools

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/nextlevelbuilder/agentloop/internal/store"
)

// DataAnalyzer computes descriptive statistics over a numeric array.
type DataAnalyzer struct{}

func NewDataAnalyzer() *DataAnalyzer { return &DataAnalyzer{} }

func (d *DataAnalyzer) Name() string { return "data_analyzer" }
func (d *DataAnalyzer) Description() string {
	return "Computes count, sum, mean, median, min, max, range, variance and standard deviation of a list of numbers."
}
func (d *DataAnalyzer) ReturnType() store.ParamType { return store.ParamObject }
func (d *DataAnalyzer) Parameters() []store.ParamSpec {
	return []store.ParamSpec{
		{Name: "data", Type: store.ParamArray, Required: true, Description: "Array of numbers (numeric strings are accepted)"},
	}
}

// Stats is the data_analyzer payload.
type Stats struct {
	Count             int     `json:"count"`
	Sum               float64 `json:"sum"`
	Mean              float64 `json:"mean"`
	Median            float64 `json:"median"`
	Min               float64 `json:"min"`
	Max               float64 `json:"max"`
	Range             float64 `json:"range"`
	Variance          float64 `json:"variance"`
	StandardDeviation float64 `json:"standardDeviation"`
}

func (d *DataAnalyzer) Execute(_ context.Context, args map[string]any) (any, error) {
	raw, ok := args["data"].([]any)
	if !ok || len(raw) == 0 {
		return nil, validationErr(d.Name(), "data must be a non-empty array")
	}
	nums := make([]float64, 0, len(raw))
	for _, v := range raw {
		if f, ok := toNumber(v); ok {
			nums = append(nums, f)
		}
	}
	if len(nums) == 0 {
		return nil, validationErr(d.Name(), "data contains no numeric values")
	}
	return Describe(nums), nil
}

// Describe computes population statistics; nums must be non-empty.
func Describe(nums []float64) Stats {
	sorted := append([]float64(nil), nums...)
	sort.Float64s(sorted)

	n := len(sorted)
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	var median float64
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	} else {
		median = sorted[n/2]
	}

	var sq float64
	for _, v := range sorted {
		sq += (v - mean) * (v - mean)
	}
	variance := sq / float64(n)

	return Stats{
		Count:             n,
		Sum:               sum,
		Mean:              mean,
		Median:            median,
		Min:               sorted[0],
		Max:               sorted[n-1],
		Range:             sorted[n-1] - sorted[0],
		Variance:          variance,
		StandardDeviation: math.Sqrt(variance),
	}
}

// toNumber follows JS Number(): null and blank strings are 0, booleans are
// 0 or 1, numeric strings parse. Objects, arrays and other strings are
// non-numeric.
func toNumber(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case nil:
		f = 0
	case bool:
		if x {
			f = 1
		}
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, true
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
