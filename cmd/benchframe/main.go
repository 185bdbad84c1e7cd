// Command benchframe measures throughput of the green trip transform chain on
// synthetic chunks.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/wdm0006/dynframe/pkg/dynframe"
	"github.com/wdm0006/dynframe/pkg/profile"
	imp "github.com/wdm0006/dynframe/pkg/transform/impute"
	"github.com/wdm0006/dynframe/pkg/transform/mapping"
	"github.com/wdm0006/dynframe/pkg/transform/resolve"
	std "github.com/wdm0006/dynframe/pkg/transform/standardize"
)

// genSource emits chunks shaped like the raw green table. store_and_fwd_flag
// is a choice column holding both letters and numbers.
type genSource struct {
	schema dynframe.Schema
	remain int
	chunk  int
	missp  float64
	rnd    *rand.Rand
}

func newGenSource(rows, chunk int, missp float64, seed int64) *genSource {
	var s dynframe.Schema
	for _, m := range mapping.GreenTrips {
		cs, _ := dynframe.ParseType(m.Source, m.SourceType)
		if m.Source == "store_and_fwd_flag" {
			cs, _ = dynframe.ParseType(m.Source, "choice<long,string>")
		}
		s.Columns = append(s.Columns, cs)
	}
	return &genSource{schema: s, remain: rows, chunk: chunk, missp: missp, rnd: rand.New(rand.NewSource(seed))}
}

func (g *genSource) Next() (*dynframe.Frame, error) {
	if g.remain <= 0 {
		return nil, io.EOF
	}
	n := min(g.chunk, g.remain)
	g.remain -= n
	f := dynframe.NewFrame(g.schema)
	for i := 0; i < n; i++ {
		f.AppendNullRow()
		for _, cs := range g.schema.Columns {
			if g.rnd.Float64() < g.missp {
				continue
			}
			var v any
			switch cs.Type {
			case dynframe.KindFloat:
				v = g.rnd.Float64() * 100
			case dynframe.KindInt:
				v = int64(g.rnd.Intn(300))
			case dynframe.KindString:
				v = " 2019-12-18 15:52:" + strconv.Itoa(10+g.rnd.Intn(50)) + " "
			case dynframe.KindChoice:
				if g.rnd.Intn(2) == 0 {
					v = "N"
				} else {
					v = int64(g.rnd.Intn(2))
				}
			}
			_ = f.SetCell(i, cs.Name, v)
		}
	}
	return f, nil
}

// profileSink counts rows and profiles every chunk it receives.
type profileSink struct {
	rows int
	prof *profile.Collector
}

func (s *profileSink) Write(f *dynframe.Frame) error {
	if s.prof == nil {
		s.prof = profile.NewCollector(f.Schema(), 5)
	}
	s.rows += f.Rows()
	s.prof.ConsumeFrame(f)
	return nil
}

func (s *profileSink) Close() error { return nil }

func main() {
	var (
		rows    = flag.Int("rows", 1_000_000, "total rows to generate")
		chunk   = flag.Int("chunk", 100_000, "rows per chunk")
		missp   = flag.Float64("missing", 0.05, "probability of missing values in each cell")
		jsonOut = flag.Bool("json", false, "emit JSON summary")
		report  = flag.Bool("profile", false, "print a profile of the transformed rows")
		seed    = flag.Int64("seed", 42, "random seed")
	)
	flag.Parse()

	p := dynframe.NewPipeline().
		Add(&mapping.ApplyMapping{Mappings: mapping.GreenTrips}).
		Add(&std.Trim{Column: "lpep_pickup_datetime"}).
		Add(&imp.Mean{Column: "fare_amount"}).
		Add(&imp.Median{Column: "passenger_count"}).
		Add(&resolve.ResolveChoice{})

	src := newGenSource(*rows, *chunk, *missp, *seed)
	sink := &profileSink{}

	runtime.GC()
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	start := time.Now()
	if err := dynframe.RunStream(context.Background(), p, src, sink); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	elapsed := time.Since(start)
	runtime.ReadMemStats(&after)

	rowsPerSec := float64(sink.rows) / elapsed.Seconds()
	if *jsonOut {
		summary := map[string]any{
			"rows":                  sink.rows,
			"elapsed_ms":            elapsed.Milliseconds(),
			"rows_per_sec":          rowsPerSec,
			"mem_alloc_bytes":       after.Alloc,
			"mem_total_alloc_bytes": after.TotalAlloc - before.TotalAlloc,
			"gc_num":                after.NumGC - before.NumGC,
			"chunk":                 *chunk,
			"missing_prob":          *missp,
			"steps":                 p.Steps(),
		}
		b, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(b))
	} else {
		fmt.Printf("Rows: %d\n", sink.rows)
		fmt.Printf("Elapsed: %s\n", elapsed)
		fmt.Printf("Throughput: %.0f rows/s\n", rowsPerSec)
		fmt.Printf("Total Alloc (delta): %d MB\n", (after.TotalAlloc-before.TotalAlloc)/1024/1024)
		fmt.Printf("GC cycles (delta): %d\n", after.NumGC-before.NumGC)
	}
	if *report && sink.prof != nil {
		fmt.Print(sink.prof.ReportText())
	}
}
