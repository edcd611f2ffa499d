// Package main runs the expectd benchmarks and writes results as JSON and
// Markdown.
// Run with: go run benchmarks/run_benchmarks.go
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// suites maps a result group to the package holding its benchmarks.
var suites = map[string]string{
	"fingerprint": "./pkg/fingerprint",
	"provider":    "./pkg/expect",
	"server":      "./pkg/server",
}

// BenchmarkResults holds all benchmark data
type BenchmarkResults struct {
	Timestamp   string           `json:"timestamp"`
	Environment Environment      `json:"environment"`
	Suites      map[string]Suite `json:"suites"`
}

type Environment struct {
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	CPU       string `json:"cpu"`
	NumCPU    int    `json:"num_cpu"`
	GoVersion string `json:"go_version"`
}

type Suite struct {
	Package    string      `json:"package"`
	Benchmarks []Benchmark `json:"benchmarks"`
	Passed     bool        `json:"passed"`
}

type Benchmark struct {
	Name        string  `json:"name"`
	NsPerOp     float64 `json:"ns_per_op"`
	OpsPerSec   float64 `json:"ops_per_sec"`
	BytesPerOp  int64   `json:"bytes_per_op"`
	AllocsPerOp int64   `json:"allocs_per_op"`
}

func main() {
	fmt.Println("==========================================")
	fmt.Println("   EXPECTD BENCHMARK SUITE")
	fmt.Println("==========================================")
	fmt.Println()

	results := BenchmarkResults{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Environment: Environment{
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
			CPU:       getCPUInfo(),
			NumCPU:    runtime.NumCPU(),
			GoVersion: runtime.Version(),
		},
		Suites: make(map[string]Suite),
	}

	for _, name := range suiteNames() {
		pkg := suites[name]
		fmt.Printf("Running %s benchmarks (%s)...\n", name, pkg)
		benches, err := runBenchmarks(pkg)
		if err != nil {
			fmt.Printf("  failed: %v\n", err)
		}
		results.Suites[name] = Suite{Package: pkg, Benchmarks: benches, Passed: err == nil}
	}

	if err := os.MkdirAll("benchmarks/results", 0755); err != nil {
		fmt.Printf("Error creating results directory: %v\n", err)
		os.Exit(1)
	}

	jsonPath := filepath.Join("benchmarks", "results", "latest.json")
	if err := writeJSON(results, jsonPath); err != nil {
		fmt.Printf("Error writing JSON: %v\n", err)
	} else {
		fmt.Printf("\nJSON results: %s\n", jsonPath)
	}

	mdPath := filepath.Join("benchmarks", "results", "LATEST.md")
	if err := os.WriteFile(mdPath, []byte(renderMarkdown(results)), 0644); err != nil {
		fmt.Printf("Error writing Markdown: %v\n", err)
	} else {
		fmt.Printf("Markdown results: %s\n", mdPath)
	}
}

func suiteNames() []string {
	names := make([]string, 0, len(suites))
	for name := range suites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func getCPUInfo() string {
	if runtime.GOOS != "linux" {
		return "unknown"
	}
	data, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return "unknown"
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "model name") {
			if parts := strings.SplitN(line, ":", 2); len(parts) == 2 {
				return strings.TrimSpace(parts[1])
			}
		}
	}
	return "unknown"
}

func runBenchmarks(pkg string) ([]Benchmark, error) {
	cmd := exec.Command("go", "test", "-run=^$", "-bench=.", "-benchtime=1s", "-benchmem", pkg)
	output, err := cmd.CombinedOutput()
	return parseBenchmarkOutput(string(output)), err
}

// Pattern: BenchmarkName-N    iterations    ns/op    bytes/op    allocs/op
var benchLine = regexp.MustCompile(`(Benchmark[\w/]+)-\d+\s+(\d+)\s+([\d.]+)\s+ns/op\s+(\d+)\s+B/op\s+(\d+)\s+allocs/op`)

func parseBenchmarkOutput(output string) []Benchmark {
	var benchmarks []Benchmark
	for _, match := range benchLine.FindAllStringSubmatch(output, -1) {
		nsPerOp, _ := strconv.ParseFloat(match[3], 64)
		bytesPerOp, _ := strconv.ParseInt(match[4], 10, 64)
		allocsPerOp, _ := strconv.ParseInt(match[5], 10, 64)

		opsPerSec := 0.0
		if nsPerOp > 0 {
			opsPerSec = 1e9 / nsPerOp
		}
		benchmarks = append(benchmarks, Benchmark{
			Name:        match[1],
			NsPerOp:     nsPerOp,
			OpsPerSec:   opsPerSec,
			BytesPerOp:  bytesPerOp,
			AllocsPerOp: allocsPerOp,
		})
	}
	return benchmarks
}

func writeJSON(results BenchmarkResults, path string) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func renderMarkdown(results BenchmarkResults) string {
	var sb strings.Builder
	title := cases.Title(language.English)

	sb.WriteString("# expectd Benchmark Results\n\n")
	fmt.Fprintf(&sb, "**Generated**: %s\n\n", results.Timestamp)
	sb.WriteString("## Environment\n\n")
	fmt.Fprintf(&sb, "- **OS**: %s/%s\n", results.Environment.OS, results.Environment.Arch)
	fmt.Fprintf(&sb, "- **CPU**: %s (%d cores)\n", results.Environment.CPU, results.Environment.NumCPU)
	fmt.Fprintf(&sb, "- **Go**: %s\n\n", results.Environment.GoVersion)

	for _, name := range suiteNames() {
		suite, ok := results.Suites[name]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "## %s (`%s`)\n\n", title.String(name), suite.Package)
		if !suite.Passed {
			sb.WriteString("_benchmark run failed_\n\n")
		}
		sb.WriteString("| Benchmark | ops/sec | ns/op | B/op | allocs/op |\n")
		sb.WriteString("|-----------|---------|-------|------|-----------|\n")
		for _, b := range suite.Benchmarks {
			fmt.Fprintf(&sb, "| %s | %.0f | %.0f | %d | %d |\n",
				b.Name, b.OpsPerSec, b.NsPerOp, b.BytesPerOp, b.AllocsPerOp)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Reproducing\n\n")
	sb.WriteString("```bash\n")
	sb.WriteString("go run benchmarks/run_benchmarks.go\n")
	sb.WriteString("# Or a single package:\n")
	sb.WriteString("go test -run='^$' -bench=. -benchmem ./pkg/expect\n")
	sb.WriteString("```\n")
	return sb.String()
}
