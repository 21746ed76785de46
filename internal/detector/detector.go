package detector

import "fmt"

// Detector groups the configurations carved out of one physical detector.
// Each configuration is processed independently; the group exists so a
// detector's configurations can be registered and named together.
type Detector struct {
	name    string
	id      int
	configs []Configuration
}

// NewDetector creates a detector with the given physical id.
func NewDetector(name string, id int) *Detector {
	return &Detector{name: name, id: id}
}

// Name returns the detector name.
func (d *Detector) Name() string { return d.name }

// ID returns the physical detector id.
func (d *Detector) ID() int { return d.id }

// AddConfiguration attaches a configuration to the detector.
// Configuration names must be unique within the detector.
func (d *Detector) AddConfiguration(cfg Configuration) error {
	for _, existing := range d.configs {
		if existing.Name() == cfg.Name() {
			return fmt.Errorf("detector %q: duplicate configuration %q", d.name, cfg.Name())
		}
	}
	d.configs = append(d.configs, cfg)
	return nil
}

// Configurations returns the detector's configurations in registration
// order.
func (d *Detector) Configurations() []Configuration { return d.configs }
