// Package manager orchestrates the correction framework: it owns the
// registered detector configurations and drives them through
// initialization, calibration attach, per-event processing, and
// persistence snapshots.
package manager

import (
	"fmt"
	"log"

	"github.com/banshee-data/flowvec/internal/detector"
	"github.com/banshee-data/flowvec/internal/profile"
)

// ConfigSnapshot bundles one configuration's per-step calibration
// statistics for persistence.
type ConfigSnapshot struct {
	Config string
	Steps  []detector.StepSnapshot
}

// Manager drives a set of detector configurations through a correction
// pass. It is not safe for concurrent use; events are processed one at a
// time.
type Manager struct {
	configs []detector.Configuration
	byName  map[string]detector.Configuration

	skipped int64
}

// New creates an empty manager.
func New() *Manager {
	return &Manager{byName: make(map[string]detector.Configuration)}
}

// AddConfiguration registers a detector configuration. Names must be
// unique; processing order follows registration order.
func (m *Manager) AddConfiguration(cfg detector.Configuration) error {
	if _, dup := m.byName[cfg.Name()]; dup {
		return fmt.Errorf("manager: duplicate configuration %q", cfg.Name())
	}
	m.byName[cfg.Name()] = cfg
	m.configs = append(m.configs, cfg)
	return nil
}

// AddDetector registers every configuration of a detector.
func (m *Manager) AddDetector(d *detector.Detector) error {
	for _, cfg := range d.Configurations() {
		if err := m.AddConfiguration(cfg); err != nil {
			return err
		}
	}
	return nil
}

// Configurations returns the registered configurations in registration
// order.
func (m *Manager) Configurations() []detector.Configuration { return m.configs }

// Configuration looks up a registered configuration by name.
func (m *Manager) Configuration(name string) (detector.Configuration, bool) {
	cfg, ok := m.byName[name]
	return cfg, ok
}

// InitializeFramework builds every configuration's step support. Call
// after all configurations and steps are registered, before the first
// event.
func (m *Manager) InitializeFramework() error {
	for _, cfg := range m.configs {
		if err := cfg.InitializeSteps(); err != nil {
			return err
		}
	}
	log.Printf("manager: initialized %d detector configurations", len(m.configs))
	return nil
}

// AttachCalibration offers persisted calibration from a previous pass to
// every step of every configuration and returns how many steps attached.
// Steps with no stored records stay in the calibration state.
func (m *Manager) AttachCalibration(load detector.LoadFunc) (int, error) {
	attached := 0
	for _, cfg := range m.configs {
		n, err := cfg.AttachCalibration(load)
		attached += n
		if err != nil {
			return attached, err
		}
	}
	log.Printf("manager: attached calibration to %d correction steps", attached)
	return attached, nil
}

// ProcessEvent runs the correction pipeline of every configuration for
// one event. vars holds the event-classification variable values indexed
// by variable id. Configurations whose event falls outside their
// classification range are skipped for this event.
func (m *Manager) ProcessEvent(vars []float64) {
	for _, cfg := range m.configs {
		key, ok := cfg.Variables().Key(vars)
		if !ok {
			m.skipped++
			continue
		}
		cfg.ProcessEvent(key)
	}
}

// ClearEvent resets every configuration for the next event. Corrected
// vectors remain readable between ProcessEvent and ClearEvent.
func (m *Manager) ClearEvent() {
	for _, cfg := range m.configs {
		cfg.ClearEvent()
	}
}

// SkippedEvents counts configuration-events dropped because the event
// fell outside the configuration's classification range.
func (m *Manager) SkippedEvents() int64 { return m.skipped }

// FreezeCalibrations stops calibration accumulation on every step that
// already has an attached calibration. Frozen steps only apply.
func (m *Manager) FreezeCalibrations() {
	for _, cfg := range m.configs {
		cfg.Freeze()
	}
}

// Report lists the step names currently collecting calibration
// statistics and those applying corrections, across all configurations.
func (m *Manager) Report() (calibrating, applying []string) {
	for _, cfg := range m.configs {
		cfg.Report(&calibrating, &applying)
	}
	return calibrating, applying
}

// Snapshots collects every configuration's calibration statistics, in
// registration order, for persistence at the end of a pass.
func (m *Manager) Snapshots() []ConfigSnapshot {
	out := make([]ConfigSnapshot, 0, len(m.configs))
	for _, cfg := range m.configs {
		out = append(out, ConfigSnapshot{Config: cfg.Name(), Steps: cfg.Snapshots()})
	}
	return out
}

// SaveFunc persists the calibration records of one step of one
// configuration.
type SaveFunc func(configName, stepName string, records []profile.BinRecord) error

// PersistCalibration writes every step's collected statistics through the
// given save function, typically bound to a calibration store and pass.
func (m *Manager) PersistCalibration(save SaveFunc) error {
	for _, cs := range m.Snapshots() {
		for _, step := range cs.Steps {
			if err := save(cs.Config, step.Step, step.Records); err != nil {
				return fmt.Errorf("manager: persist %s/%s: %w", cs.Config, step.Step, err)
			}
		}
	}
	return nil
}
