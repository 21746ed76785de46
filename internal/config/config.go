// Package config loads the JSON description of a correction campaign:
// the event-classification variables, the detector configurations and the
// correction steps applied to each.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/flowvec/internal/corrections"
	"github.com/banshee-data/flowvec/internal/detector"
	"github.com/banshee-data/flowvec/internal/eventclass"
	"github.com/banshee-data/flowvec/internal/manager"
)

// VariableConfig describes one event-classification axis with uniform
// binning.
type VariableConfig struct {
	VarID int     `json:"var_id"`
	Label string  `json:"label"`
	Bins  int     `json:"bins"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// GainEqualizationConfig describes a gain equalization step. Fields
// omitted from the JSON keep their defaults.
type GainEqualizationConfig struct {
	Method          string   `json:"method"` // "none", "average" or "width"
	Shift           *float64 `json:"shift,omitempty"`
	Scale           *float64 `json:"scale,omitempty"`
	UseGroupWeights *bool    `json:"use_group_weights,omitempty"`
}

// RecenteringConfig describes a recentering step.
type RecenteringConfig struct {
	WidthEqualization *bool `json:"width_equalization,omitempty"`
	MinEntries        *int  `json:"min_entries,omitempty"`
}

// DetectorConfig describes one detector configuration and its steps.
type DetectorConfig struct {
	Name          string `json:"name"`
	Type          string `json:"type"` // "track" or "channel"
	Harmonics     int    `json:"harmonics"`
	HarmonicMap   []int  `json:"harmonic_map,omitempty"`
	Normalization string `json:"normalization,omitempty"` // "none", "overM" or "overSqrtM"

	// Channel structure, channel type only.
	Channels      int       `json:"channels,omitempty"`
	UsedChannels  []bool    `json:"used_channels,omitempty"`
	ChannelGroups []int     `json:"channel_groups,omitempty"`
	GroupWeights  []float64 `json:"group_weights,omitempty"`

	GainEqualization *GainEqualizationConfig `json:"gain_equalization,omitempty"`
	Recentering      *RecenteringConfig      `json:"recentering,omitempty"`
}

// CampaignConfig is the root of a campaign description file.
type CampaignConfig struct {
	EventVariables []VariableConfig `json:"event_variables"`
	Detectors      []DetectorConfig `json:"detectors"`
}

// Load reads and validates a campaign config from a JSON file. Partial
// configs are safe; omitted step parameters keep their defaults.
func Load(path string) (*CampaignConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg CampaignConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the parts of the config that BuildManager cannot defer
// to the constructors.
func (c *CampaignConfig) Validate() error {
	if len(c.EventVariables) == 0 {
		return fmt.Errorf("at least one event variable is required")
	}
	if len(c.Detectors) == 0 {
		return fmt.Errorf("at least one detector is required")
	}
	for _, d := range c.Detectors {
		switch d.Type {
		case "track", "channel":
		default:
			return fmt.Errorf("detector %q: unknown type %q", d.Name, d.Type)
		}
		if _, err := parseNormalization(d.Normalization); err != nil {
			return fmt.Errorf("detector %q: %w", d.Name, err)
		}
		if d.GainEqualization != nil {
			if d.Type != "channel" {
				return fmt.Errorf("detector %q: gain equalization needs a channel detector", d.Name)
			}
			if _, err := parseMethod(d.GainEqualization.Method); err != nil {
				return fmt.Errorf("detector %q: %w", d.Name, err)
			}
		}
	}
	return nil
}

// BuildManager wires the described campaign into a ready manager. The
// caller still has to run InitializeFramework after any extra
// configurations are added.
func (c *CampaignConfig) BuildManager() (*manager.Manager, error) {
	variables, err := c.variables()
	if err != nil {
		return nil, err
	}

	m := manager.New()
	for _, d := range c.Detectors {
		cfg, err := c.buildDetector(d, variables)
		if err != nil {
			return nil, err
		}
		if err := m.AddConfiguration(cfg); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (c *CampaignConfig) variables() (eventclass.VariableSet, error) {
	var set eventclass.VariableSet
	for _, vc := range c.EventVariables {
		v, err := eventclass.NewUniformVariable(vc.VarID, vc.Label, vc.Bins, vc.Min, vc.Max)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", vc.Label, err)
		}
		set = append(set, v)
	}
	return set, nil
}

func (c *CampaignConfig) buildDetector(d DetectorConfig, variables eventclass.VariableSet) (detector.Configuration, error) {
	norm, err := parseNormalization(d.Normalization)
	if err != nil {
		return nil, err
	}
	base := detector.Config{
		Name:          d.Name,
		Harmonics:     d.Harmonics,
		HarmonicMap:   d.HarmonicMap,
		Variables:     variables,
		Normalization: norm,
	}

	recentering := func() *corrections.Recentering {
		rc := corrections.RecenteringConfig{}
		if d.Recentering.WidthEqualization != nil {
			rc.WidthEqualization = *d.Recentering.WidthEqualization
		}
		if d.Recentering.MinEntries != nil {
			rc.MinEntriesToValidate = int64(*d.Recentering.MinEntries)
		}
		return corrections.NewRecentering(rc)
	}

	switch d.Type {
	case "track":
		cfg, err := detector.NewTrackConfiguration(base)
		if err != nil {
			return nil, err
		}
		if d.Recentering != nil {
			cfg.AddQvectorStep(recentering())
		}
		return cfg, nil

	case "channel":
		cfg, err := detector.NewChannelConfiguration(detector.ChannelConfig{
			Config:                base,
			Channels:              d.Channels,
			UsedChannels:          d.UsedChannels,
			ChannelGroups:         d.ChannelGroups,
			HardCodedGroupWeights: d.GroupWeights,
		})
		if err != nil {
			return nil, err
		}
		if d.GainEqualization != nil {
			method, err := parseMethod(d.GainEqualization.Method)
			if err != nil {
				return nil, err
			}
			gc := corrections.GainEqualizationConfig{
				Method: method,
				A:      d.GainEqualization.Shift,
				B:      d.GainEqualization.Scale,
			}
			if d.GainEqualization.UseGroupWeights != nil {
				gc.UseGroupWeights = *d.GainEqualization.UseGroupWeights
			}
			cfg.AddInputStep(corrections.NewGainEqualization(gc))
		}
		if d.Recentering != nil {
			cfg.AddQvectorStep(recentering())
		}
		return cfg, nil

	default:
		return nil, fmt.Errorf("detector %q: unknown type %q", d.Name, d.Type)
	}
}

func parseNormalization(s string) (detector.NormalizationMethod, error) {
	switch s {
	case "", "none":
		return detector.NormalizationNone, nil
	case "overM":
		return detector.NormalizationOverM, nil
	case "overSqrtM":
		return detector.NormalizationOverSqrtM, nil
	default:
		return 0, fmt.Errorf("unknown normalization %q", s)
	}
}

func parseMethod(s string) (corrections.EqualizationMethod, error) {
	switch s {
	case "", "none":
		return corrections.EqualizeNone, nil
	case "average":
		return corrections.EqualizeAverage, nil
	case "width":
		return corrections.EqualizeWidth, nil
	default:
		return 0, fmt.Errorf("unknown equalization method %q", s)
	}
}
