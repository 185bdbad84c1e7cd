package job

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	yaml "gopkg.in/yaml.v3"

	"github.com/wdm0006/dynframe/pkg/objstore"
	"github.com/wdm0006/dynframe/pkg/sink"
	"github.com/wdm0006/dynframe/pkg/transform/mapping"
	"github.com/wdm0006/dynframe/pkg/transform/resolve"
	"github.com/wdm0006/dynframe/pkg/transform/steps"
)

const (
	BookmarkEnable  = "job-bookmark-enable"
	BookmarkDisable = "job-bookmark-disable"
)

type Source struct {
	Database          string `json:"database" yaml:"database" toml:"database"`
	Table             string `json:"table" yaml:"table" toml:"table"`
	TransformationCtx string `json:"transformation_ctx" yaml:"transformation_ctx" toml:"transformation_ctx"`
}

type Sink struct {
	// Path is the output prefix; empty means s3://<bucket>/data/transformed/green.
	Path         string `json:"path" yaml:"path" toml:"path"`
	sink.Options `yaml:",inline"`
}

type Catalog struct {
	DSN string `json:"dsn" yaml:"dsn" toml:"dsn"`
}

type MetricsConfig struct {
	// Pushgateway is the base URL metrics are pushed to on commit; empty
	// disables pushing.
	Pushgateway string `json:"pushgateway" yaml:"pushgateway" toml:"pushgateway"`
}

// Config is the job configuration file. Zero fields take the defaults of
// DefaultConfig.
type Config struct {
	Source Source `json:"source" yaml:"source" toml:"source"`
	// Mappings lists source, source type, target, target type tuples. Empty
	// means the green trip mappings.
	Mappings   [][4]string        `json:"mappings" yaml:"mappings" toml:"mappings"`
	CastPolicy string             `json:"cast_policy" yaml:"cast_policy" toml:"cast_policy"`
	Choice     string             `json:"choice" yaml:"choice" toml:"choice"`
	Resolve    []resolve.Spec     `json:"resolve" yaml:"resolve" toml:"resolve"`
	Steps      []steps.Step       `json:"steps" yaml:"steps" toml:"steps"`
	Sink       Sink               `json:"sink" yaml:"sink" toml:"sink"`
	Catalog    Catalog            `json:"catalog" yaml:"catalog" toml:"catalog"`
	Bookmarks  string             `json:"job_bookmark_option" yaml:"job_bookmark_option" toml:"job_bookmark_option"`
	S3         objstore.S3Options `json:"s3" yaml:"s3" toml:"s3"`
	Metrics    MetricsConfig      `json:"metrics" yaml:"metrics" toml:"metrics"`
	LogLevel   string             `json:"log_level" yaml:"log_level" toml:"log_level"`
}

func DefaultConfig() Config {
	return Config{
		Source:     Source{Database: "default", Table: "green", TransformationCtx: "datasource0"},
		CastPolicy: "null",
		Choice:     "make_struct",
		Sink:       Sink{Options: sink.Options{Format: "parquet", Compression: "snappy"}},
		Catalog:    Catalog{DSN: "sqlite://catalog.db"},
		Bookmarks:  BookmarkDisable,
		LogLevel:   "info",
	}
}

// LoadConfig decodes path as JSON, YAML or TOML by extension over the
// defaults. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return Config{}, fmt.Errorf("config %s: unsupported extension", path)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Override applies command line arguments on top of the file config.
func (c *Config) Override(args Args) {
	c.Catalog.DSN = args.Get("catalog-dsn", c.Catalog.DSN)
	c.Bookmarks = args.Get("job-bookmark-option", c.Bookmarks)
	if b := args["bucket"]; b != "" && c.Sink.Path == "" {
		c.Sink.Path = "s3://" + b + "/data/transformed/green"
	}
	c.LogLevel = args.Get("log-level", c.LogLevel)
}

// Validate checks the fields a run cannot start without.
func (c Config) Validate() error {
	if c.Sink.Path == "" {
		return fmt.Errorf("%w: bucket (or sink.path in the config)", ErrMissingArgument)
	}
	if c.Source.Database == "" || c.Source.Table == "" {
		return fmt.Errorf("%w: source database and table", ErrMissingArgument)
	}
	switch c.Bookmarks {
	case BookmarkEnable, BookmarkDisable:
	default:
		return fmt.Errorf("unknown job bookmark option %q", c.Bookmarks)
	}
	if _, err := c.mappings(); err != nil {
		return err
	}
	if _, err := mapping.ParseCastPolicy(c.CastPolicy); err != nil {
		return err
	}
	if _, err := resolve.ParseAction(c.Choice); err != nil {
		return err
	}
	for _, sp := range c.Resolve {
		if _, err := resolve.ParseAction(sp.Action); err != nil {
			return fmt.Errorf("resolve %s: %w", sp.Path, err)
		}
	}
	_, err := steps.Build(c.Steps)
	return err
}

func (c Config) mappings() ([]mapping.Mapping, error) {
	if len(c.Mappings) == 0 {
		return mapping.GreenTrips, nil
	}
	return mapping.ParseMappings(c.Mappings)
}

func (c Config) bookmarksEnabled() bool { return c.Bookmarks == BookmarkEnable }
