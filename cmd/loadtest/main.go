// Command loadtest drives GET /search with concurrent workers and prints a
// latency and cache-hit report.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	searchhandler "github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/searcher/handler"
)

var defaultQueries = []string{
	"whale",
	"white whale",
	"captain ship sea",
	"pride prejudice",
	"monster creature",
	"detective",
	"war peace",
	"garden",
	"journey river",
	"love letter",
	"café",
	"ghost castle",
}

type options struct {
	baseURL     string
	concurrency int
	duration    time.Duration
	limit       int
	queries     []string
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	limit := flag.Int("limit", 10, "limit parameter sent with each query")
	queryFile := flag.String("queries", "", "file with one query per line (default: built-in list)")
	flag.Parse()

	queries := defaultQueries
	if *queryFile != "" {
		loaded, err := readQueries(*queryFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read queries: %v\n", err)
			os.Exit(1)
		}
		queries = loaded
	}

	opts := options{
		baseURL:     strings.TrimRight(*baseURL, "/"),
		concurrency: *concurrency,
		duration:    *duration,
		limit:       *limit,
		queries:     queries,
	}

	fmt.Println("=== Book Search Load Test ===")
	fmt.Printf("Target:      %s\n", opts.baseURL)
	fmt.Printf("Concurrency: %d\n", opts.concurrency)
	fmt.Printf("Duration:    %s\n", opts.duration)
	fmt.Printf("Queries:     %d unique\n\n", len(opts.queries))

	rec := run(opts)
	summary := rec.Summarize(opts.duration)
	summary.Print(os.Stdout)
	if summary.Total == 0 {
		fmt.Println("\nWARNING: no requests completed. Is the search service running?")
		os.Exit(1)
	}
}

func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if q := strings.TrimSpace(sc.Text()); q != "" {
			out = append(out, q)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s contains no queries", path)
	}
	return out, nil
}

func run(opts options) *Recorder {
	rec := NewRecorder()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        opts.concurrency * 2,
			MaxIdleConnsPerHost: opts.concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.duration)
	defer cancel()

	var g errgroup.Group
	for w := 0; w < opts.concurrency; w++ {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				q := opts.queries[i%len(opts.queries)]
				target := fmt.Sprintf("%s/search?q=%s&limit=%d", opts.baseURL, url.QueryEscape(q), opts.limit)
				rec.Record(searchOnce(ctx, client, target))
			}
			return nil
		})
	}
	g.Wait()
	return rec
}

func searchOnce(ctx context.Context, client *http.Client, target string) Sample {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Sample{Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Sample{Cancelled: true}
		}
		return Sample{Latency: time.Since(start), Err: err}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return Sample{
		Latency:  time.Since(start),
		Status:   resp.StatusCode,
		CacheHit: resp.Header.Get(searchhandler.CacheHeader) == "hit",
	}
}
