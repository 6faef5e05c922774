package model

import (
	"fmt"
)

// Family tags the request/response conventions a backend model speaks.
type Family string

const (
	FamilyAnthropic Family = "anthropic"
	FamilyNova      Family = "nova"
	FamilyTitan     Family = "titan"
)

// Descriptor maps a public model alias to a backend model and its pricing.
// Descriptors are read-only at request time.
type Descriptor struct {
	Alias             string
	BackendID         string
	Family            Family
	Provider          string
	Description       string
	PriceInputPer1K   float64 // USD per 1K prompt tokens
	PriceOutputPer1K  float64 // USD per 1K completion tokens
	SupportsStreaming bool
}

type UnknownModelError struct {
	Alias string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model: %s", e.Alias)
}

// Registry is built once at process start and never mutated afterwards.
type Registry struct {
	defaultAlias string
	byAlias      map[string]Descriptor
	order        []string
}

func NewRegistry(defaultAlias string, descriptors []Descriptor) (*Registry, error) {
	r := &Registry{
		defaultAlias: defaultAlias,
		byAlias:      make(map[string]Descriptor, len(descriptors)),
	}
	for _, d := range descriptors {
		if d.Alias == "" {
			return nil, fmt.Errorf("descriptor for %q has empty alias", d.BackendID)
		}
		if _, dup := r.byAlias[d.Alias]; dup {
			return nil, fmt.Errorf("duplicate model alias: %s", d.Alias)
		}
		r.byAlias[d.Alias] = d
		r.order = append(r.order, d.Alias)
	}
	if _, ok := r.byAlias[defaultAlias]; !ok {
		return nil, fmt.Errorf("default model %q not in catalog", defaultAlias)
	}
	return r, nil
}

// Resolve maps an alias to its descriptor. An empty alias resolves to the
// configured default model.
func (r *Registry) Resolve(alias string) (Descriptor, error) {
	if alias == "" {
		alias = r.defaultAlias
	}
	d, ok := r.byAlias[alias]
	if !ok {
		return Descriptor{}, &UnknownModelError{Alias: alias}
	}
	return d, nil
}

// List returns descriptors in catalog order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, alias := range r.order {
		out = append(out, r.byAlias[alias])
	}
	return out
}

// DefaultCatalog is the deployment's model table: Bedrock model IDs and
// per-1K-token pricing.
func DefaultCatalog() []Descriptor {
	return []Descriptor{
		{
			Alias:             "claude-3-haiku",
			BackendID:         "anthropic.claude-3-haiku-20240307-v1:0",
			Family:            FamilyAnthropic,
			Provider:          "anthropic",
			Description:       "Fast and efficient for simple tasks",
			PriceInputPer1K:   0.00025,
			PriceOutputPer1K:  0.00125,
			SupportsStreaming: true,
		},
		{
			Alias:             "claude-3-sonnet",
			BackendID:         "anthropic.claude-3-sonnet-20240229-v1:0",
			Family:            FamilyAnthropic,
			Provider:          "anthropic",
			Description:       "Balanced performance and capability",
			PriceInputPer1K:   0.003,
			PriceOutputPer1K:  0.015,
			SupportsStreaming: true,
		},
		{
			Alias:             "claude-3.5-sonnet",
			BackendID:         "anthropic.claude-3-5-sonnet-20240620-v1:0",
			Family:            FamilyAnthropic,
			Provider:          "anthropic",
			Description:       "Most capable model for complex tasks",
			PriceInputPer1K:   0.003,
			PriceOutputPer1K:  0.015,
			SupportsStreaming: true,
		},
		{
			Alias:             "claude-3-5-sonnet",
			BackendID:         "anthropic.claude-3-5-sonnet-20240620-v1:0",
			Family:            FamilyAnthropic,
			Provider:          "anthropic",
			Description:       "Alias of claude-3.5-sonnet",
			PriceInputPer1K:   0.003,
			PriceOutputPer1K:  0.015,
			SupportsStreaming: true,
		},
		{
			Alias:             "titan-text-express",
			BackendID:         "amazon.titan-text-express-v1",
			Family:            FamilyTitan,
			Provider:          "amazon",
			Description:       "Amazon Titan for general text generation",
			PriceInputPer1K:   0.0002,
			PriceOutputPer1K:  0.0006,
			SupportsStreaming: false,
		},
		{
			Alias:             "nova-micro",
			BackendID:         "amazon.nova-micro-v1:0",
			Family:            FamilyNova,
			Provider:          "amazon",
			Description:       "Lowest-cost Nova model for text",
			PriceInputPer1K:   0.000035,
			PriceOutputPer1K:  0.00014,
			SupportsStreaming: true,
		},
		{
			Alias:             "nova-lite",
			BackendID:         "amazon.nova-lite-v1:0",
			Family:            FamilyNova,
			Provider:          "amazon",
			Description:       "Low-cost Nova multimodal model",
			PriceInputPer1K:   0.00006,
			PriceOutputPer1K:  0.00024,
			SupportsStreaming: true,
		},
	}
}
