package job

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdm0006/dynframe/pkg/transform/mapping"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestDefaultConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.Source.Database)
	assert.Equal(t, "green", cfg.Source.Table)
	assert.Equal(t, "datasource0", cfg.Source.TransformationCtx)
	assert.Equal(t, "make_struct", cfg.Choice)
	assert.Equal(t, "parquet", cfg.Sink.Format)

	ms, err := cfg.mappings()
	require.NoError(t, err)
	assert.Equal(t, mapping.GreenTrips, ms)

	assert.ErrorIs(t, cfg.Validate(), ErrMissingArgument)
	cfg.Override(Args{"bucket": "lake", "job-bookmark-option": BookmarkEnable})
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "s3://lake/data/transformed/green", cfg.Sink.Path)
	assert.True(t, cfg.bookmarksEnabled())
}

func TestLoadConfigYAML(t *testing.T) {
	p := writeConfig(t, "job.yaml", `
source:
  table: yellow
mappings:
  - [vendorid, long, vendor, string]
cast_policy: fail
sink:
  path: file:///tmp/out
  format: csv
  compression: gzip
  partition_keys: [vendor]
steps:
  - trim: {column: vendor}
s3:
  endpoint: http://localhost:9000
  path_style: true
`)
	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.Source.Database)
	assert.Equal(t, "yellow", cfg.Source.Table)
	assert.Equal(t, "csv", cfg.Sink.Format)
	assert.Equal(t, []string{"vendor"}, cfg.Sink.PartitionKeys)
	assert.True(t, cfg.S3.PathStyle)
	require.Len(t, cfg.Steps, 1)
	assert.Equal(t, "vendor", cfg.Steps[0]["trim"].Column)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigJSONAndTOML(t *testing.T) {
	j := writeConfig(t, "job.json", `{"sink": {"path": "s3://b/out", "max_rows_per_file": 10}, "job_bookmark_option": "job-bookmark-enable"}`)
	cfg, err := LoadConfig(j)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Sink.MaxRowsPerFile)
	assert.Equal(t, "snappy", cfg.Sink.Compression)
	assert.True(t, cfg.bookmarksEnabled())

	tm := writeConfig(t, "job.toml", `
choice = "cast:long"

[sink]
path = "s3://b/out"
format = "json"

[metrics]
pushgateway = "http://pushgateway:9091"
`)
	cfg, err = LoadConfig(tm)
	require.NoError(t, err)
	assert.Equal(t, "cast:long", cfg.Choice)
	assert.Equal(t, "json", cfg.Sink.Format)
	assert.Equal(t, "http://pushgateway:9091", cfg.Metrics.Pushgateway)
	require.NoError(t, cfg.Validate())
}

func TestConfigRejects(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "job.ini", "x=1"))
	assert.Error(t, err)

	base := DefaultConfig()
	base.Sink.Path = "s3://b/out"

	c := base
	c.Bookmarks = "sometimes"
	assert.Error(t, c.Validate())

	c = base
	c.Mappings = [][4]string{{"a", "blob", "a", "long"}}
	assert.ErrorIs(t, c.Validate(), mapping.ErrUnknownType)

	c = base
	c.Choice = "explode"
	assert.Error(t, c.Validate())

	c = base
	c.CastPolicy = "ignore"
	assert.Error(t, c.Validate())
}
