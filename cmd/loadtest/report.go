package main

import (
	"fmt"
	"io"
	"math"
	"slices"
	"sync"
	"time"
)

// Sample is the outcome of one request.
type Sample struct {
	Latency   time.Duration
	Status    int
	CacheHit  bool
	Err       error
	Cancelled bool
}

// Recorder accumulates samples from concurrent workers.
type Recorder struct {
	mu      sync.Mutex
	samples []Sample
}

func NewRecorder() *Recorder {
	return &Recorder{samples: make([]Sample, 0, 100000)}
}

// Record stores s. Requests cut off by the end of the run are ignored.
func (r *Recorder) Record(s Sample) {
	if s.Cancelled {
		return
	}
	r.mu.Lock()
	r.samples = append(r.samples, s)
	r.mu.Unlock()
}

type Summary struct {
	Total      int
	Successful int
	Errors     int
	CacheHits  int
	RPS        float64
	Min        time.Duration
	Mean       time.Duration
	P50        time.Duration
	P90        time.Duration
	P99        time.Duration
	Max        time.Duration
	StdDev     time.Duration
	Statuses   map[int]int
}

// Summarize computes the report over everything recorded so far.
func (r *Recorder) Summarize(elapsed time.Duration) Summary {
	r.mu.Lock()
	samples := slices.Clone(r.samples)
	r.mu.Unlock()

	s := Summary{Total: len(samples), Statuses: make(map[int]int)}
	latencies := make([]time.Duration, 0, len(samples))
	for _, sample := range samples {
		if sample.Err != nil {
			s.Errors++
			continue
		}
		s.Statuses[sample.Status]++
		if sample.Status >= 200 && sample.Status < 300 {
			s.Successful++
		} else {
			s.Errors++
		}
		if sample.CacheHit {
			s.CacheHits++
		}
		latencies = append(latencies, sample.Latency)
	}
	if elapsed > 0 {
		s.RPS = float64(s.Total) / elapsed.Seconds()
	}
	if len(latencies) == 0 {
		return s
	}

	slices.Sort(latencies)
	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	s.Min = latencies[0]
	s.Max = latencies[len(latencies)-1]
	s.Mean = sum / time.Duration(len(latencies))
	s.P50 = percentile(latencies, 50)
	s.P90 = percentile(latencies, 90)
	s.P99 = percentile(latencies, 99)

	var sq float64
	for _, l := range latencies {
		d := float64(l - s.Mean)
		sq += d * d
	}
	s.StdDev = time.Duration(math.Sqrt(sq / float64(len(latencies))))
	return s
}

// Print writes a human-readable report.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", s.Total)
	fmt.Fprintf(w, "Successful:      %d\n", s.Successful)
	fmt.Fprintf(w, "Errors:          %d\n", s.Errors)
	if s.Total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(s.Errors)/float64(s.Total)*100)
		fmt.Fprintf(w, "Cache Hit Rate:  %.2f%%\n", float64(s.CacheHits)/float64(s.Total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", s.RPS)
	}

	if s.Max > 0 {
		fmt.Fprintln(w, "\n=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", s.Min)
		fmt.Fprintf(w, "Mean:   %s\n", s.Mean)
		fmt.Fprintf(w, "P50:    %s\n", s.P50)
		fmt.Fprintf(w, "P90:    %s\n", s.P90)
		fmt.Fprintf(w, "P99:    %s\n", s.P99)
		fmt.Fprintf(w, "Max:    %s\n", s.Max)
		fmt.Fprintf(w, "StdDev: %s\n", s.StdDev)
	}

	fmt.Fprintln(w, "\n=== Status Codes ===")
	codes := make([]int, 0, len(s.Statuses))
	for code := range s.Statuses {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, s.Statuses[code])
	}
}

// percentile uses the nearest-rank method on sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
