// Command flowvec runs a flow-vector correction campaign over toy events:
// it processes the same generated data for a number of passes, persisting
// each pass's calibration and attaching it to the next, until the
// corrections converge.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/flowvec/internal/calibdb"
	"github.com/banshee-data/flowvec/internal/config"
	"github.com/banshee-data/flowvec/internal/detector"
	"github.com/banshee-data/flowvec/internal/manager"
	"github.com/banshee-data/flowvec/internal/monitor"
	"github.com/banshee-data/flowvec/internal/version"
)

func main() {
	dbPath := flag.String("db", "flowvec.db", "Path to the calibration database")
	configPath := flag.String("config", "config/campaign.json", "Campaign description file")
	events := flag.Int("events", 1000, "Events to generate per pass")
	passes := flag.Int("passes", 2, "Correction passes to run")
	seed := flag.Uint64("seed", 1, "Toy generator seed (same events every pass)")
	meanTracks := flag.Float64("tracks", 50, "Mean track multiplicity per event")
	plotsDir := flag.String("plots", "", "Directory for QA plots of the final pass (empty disables)")
	freeze := flag.Bool("freeze", false, "Freeze calibration accumulation on the final pass")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if err := run(*dbPath, *configPath, *events, *passes, *seed, *meanTracks, *plotsDir, *freeze); err != nil {
		fmt.Fprintf(os.Stderr, "flowvec: %v\n", err)
		os.Exit(1)
	}
}

func run(dbPath, configPath string, events, passes int, seed uint64, meanTracks float64, plotsDir string, freeze bool) error {
	campaign, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := calibdb.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	channels := maxChannels(campaign)

	var prev *calibdb.Pass
	for pass := 1; pass <= passes; pass++ {
		m, err := campaign.BuildManager()
		if err != nil {
			return err
		}
		if err := m.InitializeFramework(); err != nil {
			return err
		}

		if prev != nil {
			if _, err := m.AttachCalibration(store.Loader(prev.PassID)); err != nil {
				return err
			}
			if freeze && pass == passes {
				m.FreezeCalibrations()
			}
		}

		calibrating, applying := m.Report()
		log.Printf("pass %d: %d steps calibrating, %d applying", pass, len(calibrating), len(applying))

		gen := newGenerator(seed, channels, meanTracks)
		for i := 0; i < events; i++ {
			ev := gen.event()
			feed(m.Configurations(), ev)
			m.ProcessEvent([]float64{ev.Centrality})
			m.ClearEvent()
		}
		if n := m.SkippedEvents(); n > 0 {
			log.Printf("pass %d: %d configuration-events outside classification range", pass, n)
		}

		record, err := store.CreatePass(fmt.Sprintf("pass-%d", pass))
		if err != nil {
			return err
		}
		if err := m.PersistCalibration(store.Saver(record.PassID)); err != nil {
			return err
		}
		log.Printf("pass %d: calibration stored as %s", pass, record.PassID)

		if plotsDir != "" && pass == passes {
			if err := writePlots(plotsDir, m); err != nil {
				return err
			}
		}

		prev = record
	}
	return nil
}

// feed fills every configuration's sample bank from one toy event.
func feed(configs []detector.Configuration, ev toyEvent) {
	for _, cfg := range configs {
		switch c := cfg.(type) {
		case *detector.TrackConfiguration:
			for _, phi := range ev.TrackPhis {
				c.AddTrack(phi)
			}
		case *detector.ChannelConfiguration:
			for _, hit := range ev.Hits {
				c.AddChannel(hit.Channel, hit.Phi, hit.Weight)
			}
		}
	}
}

// maxChannels returns the widest channel count across the campaign's
// detectors, so the generator covers all of them.
func maxChannels(campaign *config.CampaignConfig) int {
	channels := 1
	for _, d := range campaign.Detectors {
		if d.Channels > channels {
			channels = d.Channels
		}
	}
	return channels
}

// writePlots renders the final pass's calibration statistics as QA plots
// and logs the per-harmonic summary of every component step.
func writePlots(dir string, m *manager.Manager) error {
	cp := monitor.NewCalibrationPlotter(dir)
	written := 0
	for _, cs := range m.Snapshots() {
		for _, step := range cs.Steps {
			n, err := cp.PlotStep(cs.Config, step.Step, step.Records)
			if err != nil {
				return fmt.Errorf("plot %s/%s: %w", cs.Config, step.Step, err)
			}
			written += n

			summaries, err := monitor.SummarizeComponents(step.Step, step.Records)
			if err != nil {
				return fmt.Errorf("summarize %s/%s: %w", cs.Config, step.Step, err)
			}
			for _, s := range summaries {
				log.Printf("qa: %s / %s h%d %s mean %.5f spread %.5f",
					cs.Config, step.Step, s.Harmonic, s.Axis, s.Mean, s.Spread)
			}
		}
	}
	log.Printf("wrote %d plots to %s", written, dir)
	return nil
}
