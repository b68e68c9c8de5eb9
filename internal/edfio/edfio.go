// Package edfio adapts EDF/EDF+ files (the standard interchange format
// for physiological recordings) to the in-memory Recording model. Sample
// decoding and encoding go through github.com/OpenPSG/edf; only the
// signal-header metadata (labels, per-record sample counts) is parsed
// here, since the library's Reader keeps its header private.
package edfio

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/OpenPSG/edf"

	"github.com/meglab-data/artifact.report/internal/recording"
)

// Load reads an EDF file into a fully materialized Recording. All signals
// must share one sampling rate; mixed-rate files are rejected since the
// Recording model is a single rectangular matrix.
func Load(path string) (*recording.Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load edf: %w", err)
	}
	defer f.Close()

	er, err := edf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("load edf: %w", err)
	}

	meta, err := readSignalMeta(f)
	if err != nil {
		return nil, fmt.Errorf("load edf: %w", err)
	}

	rate := 0.0
	for i, spr := range meta.samplesPerRecord {
		r := float64(spr) / meta.recordDuration.Seconds()
		if i == 0 {
			rate = r
		} else if r != rate {
			return nil, fmt.Errorf("load edf: mixed sampling rates (%g vs %g Hz)", rate, r)
		}
	}

	rec := &recording.Recording{
		Names:      make([]string, len(meta.labels)),
		Kinds:      make([]recording.ChannelKind, len(meta.labels)),
		SampleRate: rate,
		Data:       make([][]float64, len(meta.labels)),
	}
	for i, label := range meta.labels {
		rec.Names[i] = label
		rec.Kinds[i] = KindFromLabel(label)

		sr, err := er.Signal(i)
		if err != nil {
			return nil, fmt.Errorf("load edf: signal %d: %w", i, err)
		}
		total := meta.samplesPerRecord[i] * meta.dataRecords
		data := make([]float64, total)
		if _, err := sr.Read(data); err != nil && err != io.EOF {
			return nil, fmt.Errorf("load edf: signal %q: %w", label, err)
		}
		rec.Data[i] = data
	}

	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("load edf: %w", err)
	}
	return rec, nil
}

// Save writes a Recording to an EDF file using one-second data records.
// The sample count must be a whole number of records; trailing samples
// that do not fill a record are dropped, matching EDF's record layout.
func Save(path string, rec *recording.Recording) error {
	if !rec.Preloaded() {
		return fmt.Errorf("save edf: recording signal is not materialized")
	}
	spr := int(rec.SampleRate)
	if spr < 1 {
		return fmt.Errorf("save edf: sample rate %g below 1 Hz", rec.SampleRate)
	}

	hdr := edf.Header{
		Version:            edf.Version0,
		RecordingID:        "Startdate X X X X",
		StartTime:          time.Now().UTC().Truncate(time.Second),
		DataRecordDuration: time.Second,
		SignalCount:        len(rec.Names),
		Signals:            make([]edf.SignalHeader, len(rec.Names)),
	}
	for i, name := range rec.Names {
		lo, hi := channelRange(rec.Data[i])
		hdr.Signals[i] = edf.SignalHeader{
			Label:             name,
			PhysicalDimension: "uV",
			PhysicalMin:       lo,
			PhysicalMax:       hi,
			DigitalMin:        -32768,
			DigitalMax:        32767,
			SamplesPerRecord:  spr,
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save edf: %w", err)
	}
	defer f.Close()

	ew, err := edf.Create(f, hdr)
	if err != nil {
		return fmt.Errorf("save edf: %w", err)
	}
	nRecords := rec.NSamples() / spr
	for r := 0; r < nRecords; r++ {
		record := make([][]float64, len(rec.Data))
		for c := range rec.Data {
			record[c] = rec.Data[c][r*spr : (r+1)*spr]
		}
		if err := ew.WriteRecord(record); err != nil {
			return fmt.Errorf("save edf: record %d: %w", r, err)
		}
	}
	if err := ew.Close(); err != nil {
		return fmt.Errorf("save edf: %w", err)
	}
	return nil
}

// KindFromLabel maps an EDF signal label to a channel kind using the
// conventional label prefixes ("EEG Fpz-Cz", "EOG horizontal", ...).
func KindFromLabel(label string) recording.ChannelKind {
	upper := strings.ToUpper(label)
	switch {
	case strings.Contains(upper, "GRAD"):
		return recording.KindGrad
	case strings.HasPrefix(upper, "MAG") || strings.Contains(upper, "MEG MAG"):
		return recording.KindMag
	case strings.HasPrefix(upper, "EEG"):
		return recording.KindEEG
	case strings.HasPrefix(upper, "EOG"):
		return recording.KindEOG
	case strings.HasPrefix(upper, "ECG") || strings.HasPrefix(upper, "EKG"):
		return recording.KindECG
	case strings.HasPrefix(upper, "STATUS") || strings.HasPrefix(upper, "TRIG") ||
		strings.HasPrefix(upper, "MARKER") || strings.HasPrefix(upper, "EVENT"):
		return recording.KindStim
	default:
		return recording.KindOther
	}
}

// signalMeta is the slice of the EDF header the Recording model needs.
type signalMeta struct {
	labels           []string
	samplesPerRecord []int
	dataRecords      int
	recordDuration   time.Duration
}

// readSignalMeta re-parses the fixed-layout EDF header fields that the
// edf library's Reader does not expose. Offsets per the EDF specification.
func readSignalMeta(f io.ReadSeeker) (*signalMeta, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	fixed := make([]byte, 256)
	if _, err := io.ReadFull(f, fixed); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	dataRecords, err := strconv.Atoi(strings.TrimSpace(string(fixed[236:244])))
	if err != nil {
		return nil, fmt.Errorf("parse record count: %w", err)
	}
	durSecs, err := strconv.ParseFloat(strings.TrimSpace(string(fixed[244:252])), 64)
	if err != nil {
		return nil, fmt.Errorf("parse record duration: %w", err)
	}
	ns, err := strconv.Atoi(strings.TrimSpace(string(fixed[252:256])))
	if err != nil {
		return nil, fmt.Errorf("parse signal count: %w", err)
	}

	meta := &signalMeta{
		labels:           make([]string, ns),
		samplesPerRecord: make([]int, ns),
		dataRecords:      dataRecords,
		recordDuration:   time.Duration(durSecs * float64(time.Second)),
	}

	labels := make([]byte, ns*16)
	if _, err := io.ReadFull(f, labels); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	for i := 0; i < ns; i++ {
		meta.labels[i] = strings.TrimSpace(string(labels[i*16 : (i+1)*16]))
	}

	// Skip transducer (80), dimension (8), phys min/max (8+8), digital
	// min/max (8+8), prefiltering (80) to land on samples-per-record.
	if _, err := f.Seek(int64(ns*(80+8+8+8+8+8+80)), io.SeekCurrent); err != nil {
		return nil, err
	}
	spr := make([]byte, ns*8)
	if _, err := io.ReadFull(f, spr); err != nil {
		return nil, fmt.Errorf("read samples per record: %w", err)
	}
	for i := 0; i < ns; i++ {
		v, err := strconv.Atoi(strings.TrimSpace(string(spr[i*8 : (i+1)*8])))
		if err != nil {
			return nil, fmt.Errorf("parse samples per record for signal %d: %w", i, err)
		}
		meta.samplesPerRecord[i] = v
	}
	return meta, nil
}

// channelRange returns a padded physical range for one channel so the
// 16-bit quantization never clips.
func channelRange(x []float64) (lo, hi float64) {
	lo, hi = -1, 1
	if len(x) > 0 {
		lo, hi = x[0], x[0]
		for _, v := range x[1:] {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	return lo - 0.05*span, hi + 0.05*span
}
