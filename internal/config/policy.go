package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"github.com/albapepper/scoracle-fusion/internal/match"
	"github.com/albapepper/scoracle-fusion/internal/registry"
	"github.com/albapepper/scoracle-fusion/internal/resolve"
	"github.com/albapepper/scoracle-fusion/internal/source"
)

// PolicyFile is the TOML shape of the match policy. Every key is optional;
// missing keys keep the compiled-in defaults.
//
//	[similarity]
//	combine = "max"
//
//	[confidence]
//	family = 0.8
//
//	[review]
//	lower_bound = 0.45
//
//	[[pairs]]
//	x = "statsbomb"
//	y = "skillcorner"
//	threshold = 0.60
//
//	[fields]
//	current_club = ["transfermarkt", "statsbomb"]
type PolicyFile struct {
	Similarity struct {
		Combine string `toml:"combine"`
	} `toml:"similarity"`
	Confidence struct {
		Manual float64 `toml:"manual"`
		Exact  float64 `toml:"exact"`
		Family float64 `toml:"family"`
	} `toml:"confidence"`
	Review struct {
		LowerBound float64 `toml:"lower_bound"`
	} `toml:"review"`
	Pairs  []PairEntry         `toml:"pairs"`
	Fields map[string][]string `toml:"fields"`
}

// PairEntry configures one resolution pass.
type PairEntry struct {
	X         string  `toml:"x"`
	Y         string  `toml:"y"`
	Threshold float64 `toml:"threshold"`
}

// Policy is the decoded, validated policy.
type Policy struct {
	Resolve resolve.Policy
	Fields  registry.FieldPriority
}

// DefaultPolicyFile returns the defaults in file form.
func DefaultPolicyFile() PolicyFile {
	def := resolve.DefaultPolicy()
	var pf PolicyFile
	pf.Similarity.Combine = "max"
	pf.Confidence.Manual = def.ManualConfidence
	pf.Confidence.Exact = def.ExactConfidence
	pf.Confidence.Family = def.FamilyConfidence
	pf.Review.LowerBound = def.ReviewLowerBound
	for _, p := range def.Pairs {
		pf.Pairs = append(pf.Pairs, PairEntry{X: string(p.X), Y: string(p.Y), Threshold: p.Threshold})
	}
	pf.Fields = make(map[string][]string)
	for f, srcs := range registry.DefaultFieldPriority() {
		names := make([]string, len(srcs))
		for i, s := range srcs {
			names[i] = string(s)
		}
		pf.Fields[string(f)] = names
	}
	return pf
}

// LoadPolicy reads the policy file at path. An empty path, or a path that
// does not exist, yields the defaults.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicyFile().Policy()
	}
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultPolicyFile().Policy()
	}
	if err != nil {
		return nil, fmt.Errorf("open policy: %w", err)
	}
	defer file.Close()
	return DecodePolicy(file)
}

// DecodePolicy decodes TOML over the defaults. Unknown keys are rejected so a
// misspelt threshold cannot silently fall back to the default.
func DecodePolicy(r io.Reader) (*Policy, error) {
	pf := DefaultPolicyFile()
	defaultPairs := pf.Pairs
	pf.Pairs = nil

	decoder := toml.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&pf); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	if len(pf.Pairs) == 0 {
		pf.Pairs = defaultPairs
	}
	return pf.Policy()
}

// Policy converts and validates the file form.
func (pf PolicyFile) Policy() (*Policy, error) {
	combine, err := match.CombinerByName(pf.Similarity.Combine)
	if err != nil {
		return nil, err
	}
	rp := resolve.Policy{
		ManualConfidence: pf.Confidence.Manual,
		ExactConfidence:  pf.Confidence.Exact,
		FamilyConfidence: pf.Confidence.Family,
		ReviewLowerBound: pf.Review.LowerBound,
		Scorer:           match.Scorer{Combine: combine},
	}
	for _, p := range pf.Pairs {
		x, err := source.Parse(p.X)
		if err != nil {
			return nil, fmt.Errorf("pairs: %w", err)
		}
		y, err := source.Parse(p.Y)
		if err != nil {
			return nil, fmt.Errorf("pairs: %w", err)
		}
		rp.Pairs = append(rp.Pairs, resolve.PairPolicy{X: x, Y: y, Threshold: p.Threshold})
	}
	if err := rp.Validate(); err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}

	fields := make(registry.FieldPriority, len(pf.Fields))
	names := make([]string, 0, len(pf.Fields))
	for name := range pf.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f, ok := registry.ParseField(name)
		if !ok {
			return nil, fmt.Errorf("fields: unknown field %q", name)
		}
		for _, s := range pf.Fields[name] {
			src, err := source.Parse(s)
			if err != nil {
				return nil, fmt.Errorf("fields.%s: %w", name, err)
			}
			fields[f] = append(fields[f], src)
		}
	}
	return &Policy{Resolve: rp, Fields: fields}, nil
}
