package render

import (
	"slices"
	"sort"
	"sync"
	"time"
)

// Latency summarises the render times of one stage. Percentiles use the
// nearest-rank method, so every reported value is an observed sample.
type Latency struct {
	Count int     `json:"count"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms int64   `json:"p50_ms"`
	P95Ms int64   `json:"p95_ms"`
	P99Ms int64   `json:"p99_ms"`
}

// StageSnapshot is the JSON shape of the render latency window.
type StageSnapshot struct {
	All    Latency            `json:"all"`
	Stages map[string]Latency `json:"stages"`
}

type timing struct {
	at    time.Time
	stage string
	ms    int64
}

// StageStats keeps the page render times of the last window, tagged with
// their stage.
type StageStats struct {
	mu      sync.Mutex
	window  time.Duration
	timings []timing // ordered by at
	now     func() time.Time
}

func NewStageStats(window time.Duration) *StageStats {
	if window <= 0 {
		window = time.Hour
	}
	return &StageStats{window: window, now: time.Now}
}

// Record adds one render time. Negative durations count as zero.
func (s *StageStats) Record(stage string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.expire(now)
	s.timings = append(s.timings, timing{at: now, stage: stage, ms: max(d.Milliseconds(), 0)})
}

// Snapshot summarises the window overall and per stage. Samples recorded
// without a stage count only towards the overall figures.
func (s *StageStats) Snapshot() StageSnapshot {
	s.mu.Lock()
	s.expire(s.now())
	all := make([]int64, len(s.timings))
	byStage := make(map[string][]int64)
	for i, t := range s.timings {
		all[i] = t.ms
		if t.stage != "" {
			byStage[t.stage] = append(byStage[t.stage], t.ms)
		}
	}
	s.mu.Unlock()

	out := StageSnapshot{All: summarize(all), Stages: make(map[string]Latency, len(byStage))}
	for stage, ms := range byStage {
		out.Stages[stage] = summarize(ms)
	}
	return out
}

// expire drops timings older than the window. Callers hold s.mu.
func (s *StageStats) expire(now time.Time) {
	cutoff := now.Add(-s.window)
	n := sort.Search(len(s.timings), func(i int) bool { return !s.timings[i].at.Before(cutoff) })
	if n > 0 {
		s.timings = slices.Delete(s.timings, 0, n)
	}
}

func summarize(ms []int64) Latency {
	if len(ms) == 0 {
		return Latency{}
	}
	slices.Sort(ms)
	var sum int64
	for _, v := range ms {
		sum += v
	}
	return Latency{
		Count: len(ms),
		MinMs: ms[0],
		MaxMs: ms[len(ms)-1],
		AvgMs: float64(sum) / float64(len(ms)),
		P50Ms: rank(ms, 50),
		P95Ms: rank(ms, 95),
		P99Ms: rank(ms, 99),
	}
}

// rank returns the nearest-rank pct-th percentile of sorted values.
func rank(sorted []int64, pct int) int64 {
	i := (pct*len(sorted)+99)/100 - 1
	return sorted[min(max(i, 0), len(sorted)-1)]
}
