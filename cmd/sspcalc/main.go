// Command sspcalc computes artifact signal-space projections from an EDF
// recording: it detects cardiac or ocular events, extracts and reduces
// artifact epochs, and prints (optionally persists and plots) the
// resulting projection vectors.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strings"

	"github.com/meglab-data/artifact.report/internal/edfio"
	"github.com/meglab-data/artifact.report/internal/epochs"
	"github.com/meglab-data/artifact.report/internal/events"
	"github.com/meglab-data/artifact.report/internal/monitor"
	"github.com/meglab-data/artifact.report/internal/pipeline"
	"github.com/meglab-data/artifact.report/internal/recording"
	"github.com/meglab-data/artifact.report/internal/storage/sqlite"
	"github.com/meglab-data/artifact.report/internal/version"
)

func main() {
	var (
		file         = flag.String("file", "", "input EDF recording (required)")
		mode         = flag.String("mode", "ecg", "artifact mode: ecg or eog")
		tmin         = flag.Float64("tmin", math.NaN(), "epoch start relative to event in seconds (default per mode)")
		tmax         = flag.Float64("tmax", math.NaN(), "epoch end relative to event in seconds (default per mode)")
		nGrad        = flag.Int("n-grad", 2, "projection vectors for gradiometers")
		nMag         = flag.Int("n-mag", 2, "projection vectors for magnetometers")
		nEEG         = flag.Int("n-eeg", 2, "projection vectors for EEG")
		lFreq        = flag.Float64("l-freq", 1.0, "filter low bound in Hz (-1 to unset)")
		hFreq        = flag.Float64("h-freq", 35.0, "filter high bound in Hz (-1 to unset)")
		average      = flag.Bool("average", false, "reduce the averaged waveform instead of per-epoch data")
		filterLength = flag.Int("filter-length", 2048, "FIR tap count for the filter stage")
		nJobs        = flag.Int("n-jobs", 1, "filter stage worker count (performance only)")
		chName       = flag.String("ch-name", "", "channel for cardiac detection when no ECG channel exists")
		bads         = flag.String("bads", "", "comma-separated additional bad channels")
		avgRef       = flag.Bool("avg-ref", false, "append an average EEG reference projection")
		keepProj     = flag.Bool("keep-proj", false, "include the recording's existing projections in the output")
		eventID      = flag.Int("event-id", 0, "event label (default per mode)")
		dbPath       = flag.String("db", "", "sqlite database to persist the run to")
		plotDir      = flag.String("plot-dir", "", "directory for QC plots of the averaged artifact waveform")
		verbose      = flag.Bool("verbose", false, "log pipeline stage diagnostics to stderr")
		showVersion  = flag.Bool("version", false, "print build information and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("sspcalc %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *verbose {
		pipeline.SetLogWriters(os.Stderr, os.Stderr)
	}

	rec, err := edfio.Load(*file)
	if err != nil {
		log.Fatalf("failed to load recording: %v", err)
	}

	var cfg pipeline.Config
	switch strings.ToLower(*mode) {
	case "ecg":
		cfg = pipeline.DefaultECGConfig()
	case "eog":
		cfg = pipeline.DefaultEOGConfig()
	default:
		log.Fatalf("unknown mode %q: want ecg or eog", *mode)
	}

	if !math.IsNaN(*tmin) {
		cfg.TMin = *tmin
	}
	if !math.IsNaN(*tmax) {
		cfg.TMax = *tmax
	}
	cfg.Budgets.Grad = *nGrad
	cfg.Budgets.Mag = *nMag
	cfg.Budgets.EEG = *nEEG
	cfg.LowFreq = optionalFreq(*lFreq)
	cfg.HighFreq = optionalFreq(*hFreq)
	cfg.Average = *average
	cfg.FilterLength = *filterLength
	cfg.NJobs = *nJobs
	cfg.ChName = *chName
	cfg.AvgRef = *avgRef
	cfg.NoProj = !*keepProj
	if *eventID != 0 {
		cfg.EventID = *eventID
	}
	if *bads != "" {
		cfg.Bads = strings.Split(*bads, ",")
	}

	var (
		projs []recording.Projection
		evs   []events.Event
	)
	if strings.ToLower(*mode) == "ecg" {
		projs, evs, err = pipeline.ComputeProjECG(rec, cfg)
	} else {
		projs, evs, err = pipeline.ComputeProjEOG(rec, cfg)
	}
	if err != nil {
		log.Fatalf("projection computation failed: %v", err)
	}

	fmt.Printf("%s: %d events, %d projection vectors\n", strings.ToUpper(*mode), len(evs), len(projs))
	for _, p := range projs {
		fmt.Printf("  %-24s (%s, %d channels)\n", p.Desc, p.Kind, len(p.ChannelNames))
	}

	if *dbPath != "" {
		persistRun(*dbPath, strings.ToUpper(*mode), rec.SampleRate, cfg, projs, evs)
	}
	if *plotDir != "" {
		writePlots(rec, evs, cfg, *plotDir)
	}
}

// optionalFreq maps the CLI's -1 sentinel to an unset bound.
func optionalFreq(v float64) *float64 {
	if v < 0 {
		return nil
	}
	return &v
}

func persistRun(dbPath, mode string, sampleRate float64, cfg pipeline.Config, projs []recording.Projection, evs []events.Event) {
	store, err := sqlite.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	params, err := json.Marshal(map[string]interface{}{
		"tmin": cfg.TMin, "tmax": cfg.TMax,
		"n_grad": cfg.Budgets.Grad, "n_mag": cfg.Budgets.Mag, "n_eeg": cfg.Budgets.EEG,
		"average": cfg.Average, "avg_ref": cfg.AvgRef, "no_proj": cfg.NoProj,
		"event_id": cfg.EventID,
	})
	if err != nil {
		log.Fatalf("failed to encode run parameters: %v", err)
	}

	run := &sqlite.Run{
		Mode:        mode,
		SampleRate:  sampleRate,
		ParamsJSON:  params,
		Events:      evs,
		Projections: projs,
	}
	if err := store.SaveRun(run); err != nil {
		log.Fatalf("failed to persist run: %v", err)
	}
	fmt.Printf("persisted run %s to %s\n", run.RunID, dbPath)
}

// writePlots re-extracts epochs around the detected events (the recording
// is already filtered at this point) and plots the averaged waveform.
func writePlots(rec *recording.Recording, evs []events.Event, cfg pipeline.Config, dir string) {
	picks := rec.Picks([]recording.ChannelKind{
		recording.KindGrad, recording.KindMag, recording.KindEEG, recording.KindEOG,
	}, cfg.Bads)
	ep, err := epochs.Extract(rec, evs, epochs.Config{
		TMin:      cfg.TMin,
		TMax:      cfg.TMax,
		Picks:     picks,
		Reject:    cfg.Reject,
		ApplyProj: true,
	})
	if err != nil {
		log.Fatalf("failed to extract epochs for plotting: %v", err)
	}
	paths, err := monitor.PlotEvoked(ep.Average(), dir)
	if err != nil {
		log.Fatalf("failed to write plots: %v", err)
	}
	for _, p := range paths {
		fmt.Printf("wrote %s\n", p)
	}
}
