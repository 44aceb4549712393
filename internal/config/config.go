package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/vacatrack/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// Delivery modes.
const (
	ModeSimulate = "simulate"
	ModeHTTP     = "http"
)

// Config is the decoded agent configuration.
type Config struct {
	Version         string       `json:"version"`
	CachePrefix     string       `json:"cache_prefix"`
	Origin          string       `json:"origin"`
	Manifest        []string     `json:"manifest"`
	ManifestFile    string       `json:"manifest_file,omitempty"`
	OfflineDocument string       `json:"offline_document"`
	Database        string       `json:"database"`
	Listen          string       `json:"listen"`
	Delivery        Delivery     `json:"delivery"`
	Connectivity    Connectivity `json:"connectivity"`
}

// Delivery configures the acceptor and the deferred path.
type Delivery struct {
	Mode        string  `json:"mode"`
	Endpoint    string  `json:"endpoint,omitempty"`
	ContentType string  `json:"content_type"`
	SuccessRate float64 `json:"success_rate"`
	Seed        uint64  `json:"seed"`
	Deferred    bool    `json:"deferred"`
	Tag         string  `json:"tag"`
	Timeout     string  `json:"timeout"`

	timeout time.Duration
}

// TimeoutDuration returns the parsed Timeout.
func (d Delivery) TimeoutDuration() time.Duration { return d.timeout }

// Connectivity configures the trigger scheduler's probe.
type Connectivity struct {
	Probe    string `json:"probe"`
	Interval string `json:"interval"`

	interval time.Duration
}

// IntervalDuration returns the parsed Interval.
func (c Connectivity) IntervalDuration() time.Duration { return c.interval }

// SnapshotName returns the name of the current asset snapshot.
func (c *Config) SnapshotName() string {
	return c.CachePrefix + c.Version
}

// AssetManifest returns the validated manifest.
func (c *Config) AssetManifest() (ir.AssetManifest, error) {
	return ir.NewAssetManifest(c.Manifest)
}

// Error is a configuration error with the offending field path and, for CUE
// sources, its position.
type Error struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Pos.IsValid() {
		fmt.Fprintf(&b, "%s:%d:%d: ", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column())
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// Default returns the configuration an empty file produces.
func Default() *Config {
	cfg, err := Parse([]byte("{}"), "default.yaml")
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema is invalid: %v", err))
	}
	return cfg
}

// Load reads a configuration file. Files ending in .cue are evaluated as
// CUE; anything else is parsed as YAML (which includes JSON).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data, path)
	if err != nil {
		return nil, err
	}

	if cfg.ManifestFile != "" {
		mf := cfg.ManifestFile
		if !filepath.IsAbs(mf) {
			mf = filepath.Join(filepath.Dir(path), mf)
		}
		paths, err := LoadManifest(mf)
		if err != nil {
			return nil, err
		}
		cfg.Manifest = paths
	}
	return cfg, nil
}

// Parse unifies data with the schema and decodes the result. filename picks
// the format and labels error positions.
func Parse(data []byte, filename string) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	var input cue.Value
	if strings.HasSuffix(filename, ".cue") {
		input = ctx.CompileBytes(data, cue.Filename(filename))
	} else {
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, &Error{Message: fmt.Sprintf("parse %s: %v", filename, err)}
		}
		if raw == nil {
			raw = map[string]any{}
		}
		input = ctx.Encode(raw)
	}
	if err := input.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unified := def.Unify(input)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return nil, formatCUEError(err)
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// finish parses durations and checks constraints the schema does not express.
func (c *Config) finish() error {
	var err error
	if c.Delivery.timeout, err = parseDuration("delivery.timeout", c.Delivery.Timeout); err != nil {
		return err
	}
	if c.Connectivity.interval, err = parseDuration("connectivity.interval", c.Connectivity.Interval); err != nil {
		return err
	}
	if c.Delivery.Mode == ModeHTTP && c.Delivery.Endpoint == "" {
		return &Error{Path: "delivery.endpoint", Message: "required when delivery.mode is \"http\""}
	}
	if _, err := c.AssetManifest(); err != nil && c.ManifestFile == "" {
		return &Error{Path: "manifest", Message: err.Error()}
	}
	return nil
}

func parseDuration(path, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, &Error{Path: path, Message: fmt.Sprintf("invalid duration %q", s)}
	}
	if d <= 0 {
		return 0, &Error{Path: path, Message: fmt.Sprintf("duration must be positive, got %q", s)}
	}
	return d, nil
}

// LoadManifest reads a JSON array of asset paths.
func LoadManifest(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var paths []string
	if err := yaml.Unmarshal(data, &paths); err != nil {
		return nil, &Error{Path: "manifest_file", Message: fmt.Sprintf("parse %s: %v", path, err)}
	}
	if _, err := ir.NewAssetManifest(paths); err != nil {
		return nil, &Error{Path: "manifest_file", Message: err.Error()}
	}
	return paths, nil
}

// formatCUEError keeps the first CUE error, with its path and position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &Error{Message: err.Error()}
	}

	first := errs[0]
	format, args := first.Msg()
	out := &Error{
		Path:    strings.Join(first.Path(), "."),
		Message: fmt.Sprintf(format, args...),
	}
	if positions := errors.Positions(first); len(positions) > 0 {
		out.Pos = positions[0]
	}
	return out
}
