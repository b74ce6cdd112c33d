package phases

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed contracts/*.json
var contractFS embed.FS

const schemaBaseURL = "https://plangate.schemas.local/phases/"

// ErrUnknownPhase is returned when a phase name resolves to no contract.
var ErrUnknownPhase = errors.New("unknown phase")

// Contract is the compiled output contract of one phase.
type Contract struct {
	ID              string
	Title           string
	Order           int
	Version         *semver.Version
	EvidenceBearing bool
	Aliases         []string
	// RequiredFields are the top-level fields the contract marks required.
	RequiredFields []string

	schema *jsonschema.Schema
}

// Schema returns the compiled JSON Schema.
func (c *Contract) Schema() *jsonschema.Schema {
	return c.schema
}

// Accepts reports whether an artifact declaring schemaVersion v can be
// checked against this contract: same major version, any minor or patch.
func (c *Contract) Accepts(v *semver.Version) bool {
	constraint, err := semver.NewConstraint(fmt.Sprintf("^%d.0.0", c.Version.Major()))
	if err != nil {
		return false
	}
	return constraint.Check(v)
}

// Registry resolves phase names to contracts. It is immutable once built
// and safe for concurrent use.
type Registry struct {
	contracts map[string]*Contract
	aliases   map[string]string
	order     []string
}

// Option configures a Registry.
type Option func(*registryOptions)

type registryOptions struct {
	aliases map[string]string
}

// WithAliases adds alias -> canonical phase mappings on top of the built-in
// aliases. Targets must name a known phase.
func WithAliases(aliases map[string]string) Option {
	return func(o *registryOptions) {
		for k, v := range aliases {
			o.aliases[k] = v
		}
	}
}

// NewRegistry compiles every embedded contract.
func NewRegistry(opts ...Option) (*Registry, error) {
	o := &registryOptions{aliases: map[string]string{}}
	for _, opt := range opts {
		opt(o)
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	entries, err := contractFS.ReadDir("contracts")
	if err != nil {
		return nil, fmt.Errorf("phase contracts: %w", err)
	}
	docs := make(map[string][]byte, len(entries))
	for _, e := range entries {
		data, err := contractFS.ReadFile("contracts/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("phase contracts: %w", err)
		}
		if err := c.AddResource(schemaBaseURL+e.Name(), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("phase contract %s load failed: %w", e.Name(), err)
		}
		docs[e.Name()] = data
	}

	r := &Registry{
		contracts: make(map[string]*Contract, len(catalogue)),
		aliases:   make(map[string]string),
	}
	for i, def := range catalogue {
		name := def.id + ".json"
		data, ok := docs[name]
		if !ok {
			return nil, fmt.Errorf("phase %q has no contract document", def.id)
		}
		compiled, err := c.Compile(schemaBaseURL + name)
		if err != nil {
			return nil, fmt.Errorf("phase contract %s compile failed: %w", name, err)
		}
		var head struct {
			Title    string   `json:"title"`
			Required []string `json:"required"`
		}
		if err := json.Unmarshal(data, &head); err != nil {
			return nil, fmt.Errorf("phase contract %s: %w", name, err)
		}
		version, err := semver.StrictNewVersion(def.version)
		if err != nil {
			return nil, fmt.Errorf("phase %q version: %w", def.id, err)
		}
		r.contracts[def.id] = &Contract{
			ID:              def.id,
			Title:           head.Title,
			Order:           i,
			Version:         version,
			EvidenceBearing: def.evidenceBearing,
			Aliases:         append([]string(nil), def.aliases...),
			RequiredFields:  head.Required,
			schema:          compiled,
		}
		r.order = append(r.order, def.id)
		for _, a := range def.aliases {
			r.aliases[Normalize(a)] = def.id
		}
	}

	extra := make([]string, 0, len(o.aliases))
	for k := range o.aliases {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	for _, alias := range extra {
		target := Normalize(o.aliases[alias])
		if canonical, ok := r.resolve(target); ok {
			r.aliases[Normalize(alias)] = canonical
			continue
		}
		return nil, fmt.Errorf("alias %q targets %w %q", alias, ErrUnknownPhase, o.aliases[alias])
	}
	return r, nil
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
	defaultErr      error
)

// Default returns the registry built from the embedded contracts only.
// It panics if the embedded contracts fail to compile.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry, defaultErr = NewRegistry()
	})
	if defaultErr != nil {
		panic(defaultErr)
	}
	return defaultRegistry
}

func (r *Registry) resolve(normalized string) (string, bool) {
	if _, ok := r.contracts[normalized]; ok {
		return normalized, true
	}
	canonical, ok := r.aliases[normalized]
	return canonical, ok
}

// Resolve maps a phase name or alias to its canonical identifier.
func (r *Registry) Resolve(name string) (string, bool) {
	return r.resolve(Normalize(name))
}

// Contract returns the contract for a phase name or alias.
func (r *Registry) Contract(name string) (*Contract, error) {
	id, ok := r.Resolve(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPhase, name)
	}
	return r.contracts[id], nil
}

// IsEvidenceBearing reports whether the phase requires citations.
// Unknown phases are not evidence-bearing.
func (r *Registry) IsEvidenceBearing(name string) bool {
	c, err := r.Contract(name)
	return err == nil && c.EvidenceBearing
}

// List returns the canonical phase identifiers in pipeline order.
func (r *Registry) List() []string {
	return append([]string(nil), r.order...)
}

// Next returns the phase that follows name in the pipeline.
// ok is false for the last phase and for unknown names.
func (r *Registry) Next(name string) (string, bool) {
	c, err := r.Contract(name)
	if err != nil || c.Order+1 >= len(r.order) {
		return "", false
	}
	return r.order[c.Order+1], true
}
