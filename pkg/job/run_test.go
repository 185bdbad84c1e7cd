package job

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v3"

	"github.com/wdm0006/dynframe/pkg/catalog"
	"github.com/wdm0006/dynframe/pkg/dynframe"
	"github.com/wdm0006/dynframe/pkg/io/parquetio"
	"github.com/wdm0006/dynframe/pkg/objstore"
	"github.com/wdm0006/dynframe/pkg/transform/mapping"
)

const greenHeader = "VendorID,lpep_pickup_datetime,lpep_dropoff_datetime,store_and_fwd_flag,RatecodeID," +
	"PULocationID,DOLocationID,passenger_count,trip_distance,fare_amount,extra,mta_tax,tip_amount," +
	"tolls_amount,ehail_fee,improvement_surcharge,total_amount,payment_type,trip_type"

type fixture struct {
	raw     string
	out     string
	catalog *catalog.Store
	objects objstore.Store
	args    Args
	logs    *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	st, err := catalog.Open(context.Background(), "sqlite://"+filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	fx := &fixture{
		raw:     filepath.Join(dir, "raw", "green"),
		out:     "file://" + filepath.ToSlash(filepath.Join(dir, "transformed", "green")),
		catalog: st,
		objects: objstore.NewMux().Handle("file", objstore.Local{}),
		args:    Args{"JOB_NAME": "green-job", "dag_name": "taxi", "task_id": "green", "correlation_id": "c-1"},
		logs:    &bytes.Buffer{},
	}
	require.NoError(t, os.MkdirAll(fx.raw, 0o755))
	return fx
}

func (fx *fixture) addObject(t *testing.T, name string, rows ...string) {
	t.Helper()
	body := greenHeader + "\n" + strings.Join(rows, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(fx.raw, name), []byte(body), 0o644))
}

// register catalogs the raw objects with the types of the mapping sources.
func (fx *fixture) register(t *testing.T) {
	t.Helper()
	var cols []catalog.Column
	for _, m := range mapping.GreenTrips {
		cols = append(cols, catalog.Column{Name: m.Source, Type: m.SourceType})
	}
	require.NoError(t, fx.catalog.PutTable(context.Background(), catalog.Table{
		Database: "default", Name: "green", Format: "csv",
		Location: "file://" + filepath.ToSlash(fx.raw),
		Options:  catalog.FormatOptions{Header: true},
		Columns:  cols,
	}))
}

func (fx *fixture) config() Config {
	cfg := DefaultConfig()
	cfg.Sink.Path = fx.out
	return cfg
}

func (fx *fixture) run(t *testing.T, cfg Config) (*Result, error) {
	t.Helper()
	return Run(context.Background(), cfg, fx.args, Deps{
		Objects: fx.objects,
		Catalog: fx.catalog,
		Logger:  NewLogger(fx.logs, ParseLevel("debug"), fx.args),
	})
}

const fullRow = "2,2019-12-18 15:52:30,2019-12-18 15:54:39,N,1,264,264,5,0.0,3.5,0.5,0.5,0.01,0,1.5,0.3,4.81,1,1"

func readParquet(t *testing.T, uri string) *dynframe.Frame {
	t.Helper()
	loc, err := objstore.ParseURI(uri)
	require.NoError(t, err)
	fh, err := os.Open(filepath.FromSlash(loc.Key))
	require.NoError(t, err)
	defer fh.Close()
	info, err := fh.Stat()
	require.NoError(t, err)
	r, err := parquetio.OpenReader(fh, info.Size())
	require.NoError(t, err)
	f, err := r.ReadAll(r.Schema())
	require.NoError(t, err)
	return f
}

func TestRunEndToEnd(t *testing.T) {
	fx := newFixture(t)
	fx.addObject(t, "2019-12.csv", fullRow)
	fx.register(t)

	res, err := fx.run(t, fx.config())
	require.NoError(t, err)
	assert.Equal(t, 1, res.RowsRead)
	assert.Equal(t, 1, res.RowsWritten)
	require.Len(t, res.Objects, 1)
	assert.True(t, strings.HasSuffix(res.Objects[0], "-"+res.RunID+".snappy.parquet"), res.Objects[0])

	out := readParquet(t, res.Objects[0])
	require.Equal(t, 1, out.Rows())
	require.Equal(t, 19, out.Cols())
	for i, m := range mapping.GreenTrips {
		assert.Equal(t, m.Target, out.Schema().Columns[i].Name)
		assert.NotNil(t, out.Value(0, m.Target), m.Target)
	}
	assert.Equal(t, int64(2), out.Value(0, "vendorid"))
	assert.Equal(t, "2019-12-18 15:52:30", out.Value(0, "lpep_pickup_datetime"))
	assert.Equal(t, 4.81, out.Value(0, "total_amount"))
	assert.Equal(t, "1.5", out.Value(0, "ehail_fee"))

	run, err := fx.catalog.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, catalog.RunSucceeded, run.Status)
	assert.Equal(t, "taxi.green c-1", run.Correlation)
	assert.Equal(t, int64(1), run.ObjectsWritten)

	logs := fx.logs.String()
	assert.Contains(t, logs, `"correlation_id":"taxi.green c-1"`)
	for _, milestone := range []string{"job initialised", "source loaded", "apply_mapping", "resolve_choice", "drop_null_fields", "sink written", "job committed"} {
		assert.Contains(t, logs, milestone)
	}
}

func TestRunResolvesChoicesAndDropsNullFields(t *testing.T) {
	fx := newFixture(t)
	fx.addObject(t, "a.csv", strings.Replace(fullRow, ",1.5,", ",,", 1))
	fx.addObject(t, "b.csv", strings.Replace(strings.Replace(fullRow, ",N,", ",7,", 1), ",1.5,", ",,", 1))
	c := &catalog.Crawler{Catalog: fx.catalog, Objects: fx.objects}
	tbl, err := c.Crawl(context.Background(), catalog.CrawlRequest{
		Database: "default", Table: "green", Location: "file://" + filepath.ToSlash(fx.raw),
		Options: catalog.FormatOptions{Header: true},
	})
	require.NoError(t, err)
	schema, err := tbl.Schema()
	require.NoError(t, err)
	flag, ok := schema.Lookup("store_and_fwd_flag")
	require.True(t, ok)
	assert.Equal(t, "choice<long,string>", dynframe.TypeString(flag))

	res, err := fx.run(t, fx.config())
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowsWritten)

	_, ok = res.Schema.Lookup("ehail_fee")
	assert.False(t, ok, "all-null column is pruned")
	assert.Len(t, res.Schema.Columns, 18)
	got, ok := res.Schema.Lookup("store_and_fwd_flag")
	require.True(t, ok)
	assert.Equal(t, "struct<long:long,string:string>", dynframe.TypeString(got))

	out := readParquet(t, res.Objects[0])
	assert.Equal(t, map[string]any{"long": nil, "string": "N"}, out.Value(0, "store_and_fwd_flag"))
	assert.Equal(t, map[string]any{"long": int64(7), "string": nil}, out.Value(1, "store_and_fwd_flag"))
}

func TestRunNestedJSON(t *testing.T) {
	fx := newFixture(t)
	body := `{"VendorID": 2, "pickup": {"Zone": 74, "flag": "N", "fee": null}}
{"VendorID": 1, "pickup": {"Zone": "unknown", "flag": "Y", "big": 9007199254740993}}
`
	require.NoError(t, os.WriteFile(filepath.Join(fx.raw, "trips.json"), []byte(body), 0o644))
	c := &catalog.Crawler{Catalog: fx.catalog, Objects: fx.objects}
	tbl, err := c.Crawl(context.Background(), catalog.CrawlRequest{
		Database: "default", Table: "green", Location: "file://" + filepath.ToSlash(fx.raw),
	})
	require.NoError(t, err)
	assert.Equal(t, "json", tbl.Format)
	const pickup = "struct<big:long,fee:string,flag:string,zone:choice<long,string>>"
	assert.Equal(t, []catalog.Column{
		{Name: "pickup", Type: pickup},
		{Name: "vendorid", Type: "long"},
	}, tbl.Columns)

	cfg := fx.config()
	cfg.Mappings = [][4]string{
		{"vendorid", "long", "vendorid", "long"},
		{"pickup", pickup, "pickup", pickup},
	}
	res, err := fx.run(t, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowsWritten)

	got, ok := res.Schema.Lookup("pickup")
	require.True(t, ok)
	assert.Equal(t, "struct<big:long,flag:string,zone:struct<long:long,string:string>>", dynframe.TypeString(got))
	assert.Contains(t, fx.logs.String(), "pickup.fee")

	require.Len(t, res.Objects, 1)
	out := readParquet(t, res.Objects[0])
	assert.Equal(t, map[string]any{
		"big": nil, "flag": "N", "zone": map[string]any{"long": int64(74), "string": nil},
	}, out.Value(0, "pickup"))
	assert.Equal(t, map[string]any{
		"big": int64(9007199254740993), "flag": "Y", "zone": map[string]any{"long": nil, "string": "unknown"},
	}, out.Value(1, "pickup"))
	assert.Equal(t, int64(1), out.Value(1, "vendorid"))
}

func TestRunBookmarks(t *testing.T) {
	fx := newFixture(t)
	fx.addObject(t, "a.csv", fullRow)
	fx.register(t)
	cfg := fx.config()
	cfg.Bookmarks = BookmarkEnable

	first, err := fx.run(t, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, first.RowsRead)

	second, err := fx.run(t, cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, second.RowsRead)
	assert.Equal(t, 1, second.Skipped)
	assert.Empty(t, second.Objects)

	fx.addObject(t, "b.csv", fullRow, fullRow)
	third, err := fx.run(t, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, third.RowsRead)
}

func TestRunMissingTable(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.run(t, fx.config())
	require.ErrorIs(t, err, catalog.ErrTableNotFound)
	assert.Contains(t, fx.logs.String(), "job failed")
}

func TestRunCleaningSteps(t *testing.T) {
	fx := newFixture(t)
	fx.addObject(t, "a.csv", strings.Replace(fullRow, ",N,", ", y ,", 1))
	fx.register(t)
	cfg := fx.config()
	cfg.Sink.Format = "json"
	cfg.Sink.Compression = "none"
	require.NoError(t, yamlSteps(&cfg, `
- trim: {column: store_and_fwd_flag}
- map_values: {column: store_and_fwd_flag, map: {y: Y}}
`))
	res, err := fx.run(t, cfg)
	require.NoError(t, err)
	require.Len(t, res.Objects, 1)
	loc, err := objstore.ParseURI(res.Objects[0])
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.FromSlash(loc.Key))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"store_and_fwd_flag":"Y"`)
}

func yamlSteps(cfg *Config, doc string) error {
	return yaml.Unmarshal([]byte(doc), &cfg.Steps)
}
