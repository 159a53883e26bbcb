package model

import (
	"io"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

// Config enum values.
const (
	PacingSlot   = "slot"
	PacingGlobal = "global"

	CacheMemory = "memory"
	CacheRedis  = "redis"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

type Config struct {
	Version  int       `json:"version"` // fixed 0 for now
	Input    *Input    `json:"input,omitempty"`
	Services Services  `json:"services"`
	Dispatch *Dispatch `json:"dispatch,omitempty"`
	Rank     *Rank     `json:"rank,omitempty"`
	Cache    *Cache    `json:"cache,omitempty"`
	Archive  *Archive  `json:"archive,omitempty"`
	Log      *Log      `json:"log,omitempty"`
}

// Input describes the candidate peptide source.
type Input struct {
	Path      *string `json:"path,omitempty"`
	MinLength *int    `json:"min_length,omitempty"` // default 8
	MaxLength *int    `json:"max_length,omitempty"` // default 14
	Window    *bool   `json:"window,omitempty"`     // slide over whole proteins
}

// Services selects which remote services run and where they live.
type Services struct {
	Affinity       *AffinityService `json:"affinity,omitempty"`
	Immunogenicity *RemoteService   `json:"immunogenicity,omitempty"`
	Annotation     *RemoteService   `json:"annotation,omitempty"`
}

type AffinityService struct {
	Enabled  *bool   `json:"enabled,omitempty"`
	Endpoint *string `json:"endpoint,omitempty"`
	Allele   *string `json:"allele,omitempty"`
	Method   *string `json:"method,omitempty"`
}

type RemoteService struct {
	Enabled  *bool   `json:"enabled,omitempty"`
	Endpoint *string `json:"endpoint,omitempty"`
}

// Dispatch holds the pool size, pacing and timeout knobs.
type Dispatch struct {
	Pool     *int     `json:"pool,omitempty"`      // worker slots, default 5
	DelayMS  *int     `json:"delay_ms,omitempty"`  // per-slot delay, default 100
	TimeoutS *int     `json:"timeout_s,omitempty"` // per-call timeout, default 30
	Pacing   *string  `json:"pacing,omitempty"`    // "slot" | "global"
	RateRPS  *float64 `json:"rate_rps,omitempty"`  // only for "global"
	// RetryAttempts counts total tries per call; transient failures only.
	RetryAttempts *int `json:"retry_attempts,omitempty"`
}

type Rank struct {
	AffinityWeight *float64 `json:"affinity_weight,omitempty"`
	ImmunoWeight   *float64 `json:"immuno_weight,omitempty"`
}

// Cache is a tagged union: Backend "memory" or "redis".
type Cache struct {
	Backend   string `json:"backend"`
	RedisAddr string `json:"redis_addr,omitempty"` // required when Backend == "redis"
}

type Archive struct {
	Enabled *bool   `json:"enabled,omitempty"`
	Path    *string `json:"path,omitempty"`
}

type Log struct {
	Verbose *bool `json:"verbose,omitempty"`
}

// LoadConfig validates YAML from r against the CUE schema and decodes it.
func LoadConfig(r io.Reader) (*Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return nil, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return nil, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return nil, err
	}

	return &out, nil
}

// DefaultConfig is what gets written on first run.
func DefaultConfig() Config {
	return Config{
		Version: 0,
		Services: Services{
			Affinity: &AffinityService{},
		},
	}
}
