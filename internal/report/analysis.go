package report

import (
	"sort"

	"quizload/internal/stats"
)

const (
	saturationErrorPct = 5.0
	userImpactGrowth   = 0.5
	lightZoneShare     = 0.6
	recommendedShare   = 0.8
)

// Level is one line of the cross-level table.
type Level struct {
	Concurrency  int     `json:"concurrency"`
	SubmitTPS    float64 `json:"submit_tps"`
	SubmitAvgMs  float64 `json:"submit_avg_ms"`
	SubmitP99Ms  float64 `json:"submit_p99_ms"`
	ErrorPct     float64 `json:"error_pct"`
	StatTPS      float64 `json:"stat_tps"`
	StatAvgMs    float64 `json:"stat_avg_ms"`
	StatErrorPct float64 `json:"stat_error_pct"`
	StopReason   string  `json:"stop_reason,omitempty"`
}

// Point marks a level picked by one of the heuristics. Index is -1 when
// the heuristic found nothing. Crossed is false when the fallback rule
// (largest single-step growth) picked the level.
type Point struct {
	Index       int     `json:"index"`
	Concurrency int     `json:"concurrency"`
	Value       float64 `json:"value"`
	Crossed     bool    `json:"crossed"`
}

func (p Point) Found() bool { return p.Index >= 0 }

var noPoint = Point{Index: -1}

// Zones lists the concurrency levels of each load zone.
type Zones struct {
	Light    []int `json:"light"`
	Heavy    []int `json:"heavy"`
	Collapse []int `json:"collapse"`
}

// Capacity is the sizing advice derived from the submit peak.
type Capacity struct {
	Recommended int `json:"recommended"`
	Maximum     int `json:"maximum"`
	Warning     int `json:"warning"`
}

// FailureLevel is a level whose submit error rate broke the threshold.
type FailureLevel struct {
	Concurrency int               `json:"concurrency"`
	ErrorPct    float64           `json:"error_pct"`
	Reasons     map[string]uint64 `json:"reasons"`
}

// Analysis is the bottleneck analysis of a run.
type Analysis struct {
	Levels       []Level        `json:"levels"`
	Peak         Point          `json:"peak"`
	Saturation   Point          `json:"saturation"`
	UserImpact   Point          `json:"user_impact"`
	Zones        Zones          `json:"zones"`
	Capacity     Capacity       `json:"capacity"`
	HighFailure  []FailureLevel `json:"high_failure,omitempty"`
	StatPeak     Point          `json:"stat_peak"`
	StatLatency  Point          `json:"stat_latency_spike"`
	ErrThreshold float64        `json:"error_threshold"`
}

// Analyze derives the cross-level table and the heuristics from results.
// step is the sweep increment used for the capacity warning and
// errThreshold (a fraction) selects the high-failure levels.
func Analyze(results []stats.RunResult, step int, errThreshold float64) Analysis {
	rs := sorted(results)
	a := Analysis{
		Peak:         noPoint,
		Saturation:   noPoint,
		UserImpact:   noPoint,
		StatPeak:     noPoint,
		StatLatency:  noPoint,
		ErrThreshold: errThreshold,
	}
	if len(rs) == 0 {
		return a
	}

	tps := make([]float64, len(rs))
	errs := make([]float64, len(rs))
	lat := make([]float64, len(rs))
	statTPS := make([]float64, len(rs))
	statLat := make([]float64, len(rs))
	for i, r := range rs {
		a.Levels = append(a.Levels, Level{
			Concurrency:  r.Concurrency,
			SubmitTPS:    r.Submit.Throughput,
			SubmitAvgMs:  r.Submit.AvgMs,
			SubmitP99Ms:  r.Submit.Summary().P99,
			ErrorPct:     r.Submit.ErrorRate * 100,
			StatTPS:      r.Stat.Throughput,
			StatAvgMs:    r.Stat.AvgMs,
			StatErrorPct: r.Stat.ErrorRate * 100,
			StopReason:   r.StopReason,
		})
		tps[i] = r.Submit.Throughput
		errs[i] = r.Submit.ErrorRate * 100
		lat[i] = r.Submit.AvgMs
		statTPS[i] = r.Stat.Throughput
		statLat[i] = r.Stat.AvgMs

		if r.Submit.ErrorRate > errThreshold {
			a.HighFailure = append(a.HighFailure, FailureLevel{
				Concurrency: r.Concurrency,
				ErrorPct:    r.Submit.ErrorRate * 100,
				Reasons:     r.Submit.FailureReasons,
			})
		}
	}

	a.Peak = a.point(argmax(tps), tps, true)
	a.StatPeak = a.point(argmax(statTPS), statTPS, true)
	a.Saturation = a.saturation(errs)
	a.UserImpact = a.userImpact(lat)
	a.StatLatency = a.point(argmaxStep(statLat), statLat, false)
	a.Zones = a.zones(a.Peak.Index)

	peakC := a.Levels[a.Peak.Index].Concurrency
	a.Capacity = Capacity{
		Recommended: int(float64(peakC) * recommendedShare),
		Maximum:     peakC,
		Warning:     peakC + step,
	}
	return a
}

func (a Analysis) point(i int, values []float64, crossed bool) Point {
	if i < 0 {
		return noPoint
	}
	return Point{Index: i, Concurrency: a.Levels[i].Concurrency, Value: values[i], Crossed: crossed}
}

// saturation is the first level whose error rate crosses 5% from at or
// below it, else the level with the largest single-step increase.
func (a Analysis) saturation(errs []float64) Point {
	for i := 1; i < len(errs); i++ {
		if errs[i-1] <= saturationErrorPct && errs[i] > saturationErrorPct {
			return a.point(i, errs, true)
		}
	}
	return a.point(argmaxStep(errs), errs, false)
}

// userImpact is the first level whose average latency grew by more than
// half over the previous level, else the level with the largest growth.
// Steps from a zero latency have no growth rate and are skipped.
func (a Analysis) userImpact(lat []float64) Point {
	best, bestGrowth := -1, 0.0
	for i := 1; i < len(lat); i++ {
		if lat[i-1] <= 0 {
			continue
		}
		g := (lat[i] - lat[i-1]) / lat[i-1]
		if g > userImpactGrowth {
			return a.point(i, lat, true)
		}
		if best < 0 || g > bestGrowth {
			best, bestGrowth = i, g
		}
	}
	return a.point(best, lat, false)
}

// zones splits levels around the peak index p: light up to and including
// floor(0.6p), heavy from there to the peak, collapse after it.
func (a Analysis) zones(p int) Zones {
	var z Zones
	lightEnd := int(float64(p) * lightZoneShare)
	for i, l := range a.Levels {
		switch {
		case i <= lightEnd:
			z.Light = append(z.Light, l.Concurrency)
		case i <= p:
			z.Heavy = append(z.Heavy, l.Concurrency)
		default:
			z.Collapse = append(z.Collapse, l.Concurrency)
		}
	}
	return z
}

// argmax returns the first index of the largest value.
func argmax(values []float64) int {
	if len(values) == 0 {
		return -1
	}
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

// argmaxStep returns the i >= 1 with the largest values[i]-values[i-1],
// first on ties, or -1 for fewer than two values.
func argmaxStep(values []float64) int {
	best := -1
	var bestDelta float64
	for i := 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		if best < 0 || d > bestDelta {
			best, bestDelta = i, d
		}
	}
	return best
}

// Reasons returns the reason histogram as a slice sorted by count.
func Reasons(h map[string]uint64) []ReasonCount {
	out := make([]ReasonCount, 0, len(h))
	for r, n := range h {
		out = append(out, ReasonCount{Reason: r, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

type ReasonCount struct {
	Reason string
	Count  uint64
}
