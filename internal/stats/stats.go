// Package stats tracks timing and counters for a shortening run.
// It captures how long file discovery and link processing took, what
// happened to each allow-listed link, and memory usage at the end.
package stats

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/leonardomso/shortener/internal/shortener"
)

// Stats holds metrics for one run. Record is safe for concurrent use.
type Stats struct {
	mu sync.Mutex

	// Timing for each phase
	ScanStart    time.Time
	ScanEnd      time.Time
	ProcessStart time.Time
	ProcessEnd   time.Time

	// Counts
	FilesScanned int
	FilesChanged int
	Tokens       int
	Matched      int
	Shortened    int
	Cached       int
	Unreachable  int
	Ignored      int
	Unshortened  int
	Attempts     int

	// Memory stats (captured at end)
	HeapAlloc    uint64
	TotalAlloc   uint64
	NumGC        uint32
	NumGoroutine int
}

// New creates a new Stats instance.
func New() *Stats {
	return &Stats{}
}

// StartScan marks the beginning of the file scanning phase.
func (s *Stats) StartScan() {
	s.ScanStart = time.Now()
}

// EndScan marks the end of the file scanning phase.
func (s *Stats) EndScan(filesFound int) {
	s.ScanEnd = time.Now()
	s.FilesScanned = filesFound
}

// StartProcess marks the beginning of the shortening phase.
func (s *Stats) StartProcess() {
	s.ProcessStart = time.Now()
}

// EndProcess marks the end of the shortening phase and captures memory stats.
func (s *Stats) EndProcess() {
	s.ProcessEnd = time.Now()
	s.captureMemoryStats()
}

// Record adds the outcome of one Process call.
func (s *Stats) Record(report *shortener.Report) {
	if report == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.Tokens += report.Tokens
	s.Matched += len(report.Replacements)
	for _, rep := range report.Replacements {
		s.Attempts += rep.Attempts
		switch rep.Status {
		case shortener.StatusShortened:
			s.Shortened++
		case shortener.StatusCached:
			s.Cached++
		case shortener.StatusUnreachable:
			s.Unreachable++
		case shortener.StatusIgnored:
			s.Ignored++
		case shortener.StatusUnshortened:
			s.Unshortened++
		}
	}
}

// FileChanged counts a file whose content was rewritten.
func (s *Stats) FileChanged() {
	s.mu.Lock()
	s.FilesChanged++
	s.mu.Unlock()
}

// captureMemoryStats reads current memory statistics from runtime.
func (s *Stats) captureMemoryStats() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	s.HeapAlloc = m.HeapAlloc
	s.TotalAlloc = m.TotalAlloc
	s.NumGC = m.NumGC
	s.NumGoroutine = runtime.NumGoroutine()
}

// ScanDuration returns the time spent scanning for files.
func (s *Stats) ScanDuration() time.Duration {
	if s.ScanEnd.IsZero() {
		return 0
	}
	return s.ScanEnd.Sub(s.ScanStart)
}

// ProcessDuration returns the time spent shortening links.
func (s *Stats) ProcessDuration() time.Duration {
	if s.ProcessEnd.IsZero() {
		return 0
	}
	return s.ProcessEnd.Sub(s.ProcessStart)
}

// TotalDuration returns the total time from the first phase start to process end.
func (s *Stats) TotalDuration() time.Duration {
	if s.ProcessEnd.IsZero() {
		return 0
	}
	start := s.ScanStart
	if start.IsZero() {
		start = s.ProcessStart
	}
	return s.ProcessEnd.Sub(start)
}

// Replaced returns the number of links rewritten in the output.
func (s *Stats) Replaced() int {
	return s.Shortened + s.Cached
}

// CacheHitRate returns the share of resolved links served from the cache.
func (s *Stats) CacheHitRate() float64 {
	resolved := s.Shortened + s.Cached + s.Unshortened
	if resolved == 0 {
		return 0
	}
	return float64(s.Cached) / float64(resolved)
}

// LinksPerSecond returns the throughput of the shortening phase.
func (s *Stats) LinksPerSecond() float64 {
	dur := s.ProcessDuration()
	if dur == 0 || s.Matched == 0 {
		return 0
	}
	return float64(s.Matched) / dur.Seconds()
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%.1fs", int(d.Minutes()), d.Seconds()-float64(int(d.Minutes())*60))
}

// FormatBytes formats bytes for human-readable display.
func FormatBytes(bytes uint64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)

	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/gb)
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/mb)
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/kb)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// String returns a formatted string representation of the stats.
func (s *Stats) String() string {
	var b strings.Builder

	total := s.TotalDuration()

	b.WriteString("\n=== Run Statistics ===\n\n")

	b.WriteString("Timing:\n")
	fmt.Fprintf(&b, "  Scan files:    %8s", FormatDuration(s.ScanDuration()))
	if total > 0 {
		fmt.Fprintf(&b, "  (%4.1f%%)", float64(s.ScanDuration())/float64(total)*100)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "  Shorten links: %8s", FormatDuration(s.ProcessDuration()))
	if total > 0 {
		fmt.Fprintf(&b, "  (%4.1f%%)", float64(s.ProcessDuration())/float64(total)*100)
	}
	b.WriteString("\n")

	b.WriteString("  ─────────────────────────\n")
	fmt.Fprintf(&b, "  Total:         %8s\n", FormatDuration(total))

	b.WriteString("\nLinks:\n")
	if s.FilesScanned > 0 {
		fmt.Fprintf(&b, "  Files scanned:     %5d\n", s.FilesScanned)
		fmt.Fprintf(&b, "  Files changed:     %5d\n", s.FilesChanged)
	}
	fmt.Fprintf(&b, "  Tokens:            %5d\n", s.Tokens)
	fmt.Fprintf(&b, "  Allow-listed:      %5d\n", s.Matched)
	fmt.Fprintf(&b, "  Shortened:         %5d\n", s.Shortened)
	fmt.Fprintf(&b, "  From cache:        %5d\n", s.Cached)
	if s.Unreachable > 0 {
		fmt.Fprintf(&b, "  Unreachable:       %5d\n", s.Unreachable)
	}
	if s.Ignored > 0 {
		fmt.Fprintf(&b, "  Ignored:           %5d\n", s.Ignored)
	}
	if s.Unshortened > 0 {
		fmt.Fprintf(&b, "  Unshortened:       %5d\n", s.Unshortened)
	}
	fmt.Fprintf(&b, "  Provider attempts: %5d\n", s.Attempts)
	fmt.Fprintf(&b, "  Cache hit rate:    %5.1f%%\n", s.CacheHitRate()*100)
	fmt.Fprintf(&b, "  Links/second:      %5.1f\n", s.LinksPerSecond())

	b.WriteString("\nMemory:\n")
	fmt.Fprintf(&b, "  Heap in use:   %8s\n", FormatBytes(s.HeapAlloc))
	fmt.Fprintf(&b, "  Total alloc:   %8s\n", FormatBytes(s.TotalAlloc))
	fmt.Fprintf(&b, "  GC cycles:     %8d\n", s.NumGC)
	fmt.Fprintf(&b, "  Goroutines:    %8d\n", s.NumGoroutine)

	return b.String()
}

// ToJSON returns a map suitable for JSON serialization.
func (s *Stats) ToJSON() map[string]any {
	return map[string]any{
		"timing": map[string]any{
			"scan_ms":    s.ScanDuration().Milliseconds(),
			"process_ms": s.ProcessDuration().Milliseconds(),
			"total_ms":   s.TotalDuration().Milliseconds(),
		},
		"links": map[string]any{
			"files_scanned":    s.FilesScanned,
			"files_changed":    s.FilesChanged,
			"tokens":           s.Tokens,
			"matched":          s.Matched,
			"shortened":        s.Shortened,
			"cached":           s.Cached,
			"unreachable":      s.Unreachable,
			"ignored":          s.Ignored,
			"unshortened":      s.Unshortened,
			"attempts":         s.Attempts,
			"cache_hit_rate":   s.CacheHitRate(),
			"links_per_second": s.LinksPerSecond(),
		},
		"memory": map[string]any{
			"heap_bytes":  s.HeapAlloc,
			"total_bytes": s.TotalAlloc,
			"gc_cycles":   s.NumGC,
			"goroutines":  s.NumGoroutine,
		},
	}
}
