package audio

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
)

// SilenceMetrics summarises the loudness of a whole track.
type SilenceMetrics struct {
	RMSdBFS  float64
	PeakdBFS float64
	Samples  int64
}

// A tolerated peak above the RMS threshold keeps clicks and codec noise from
// defeating the gate.
const peakHeadroomDB = 6

// IsSilentWAV reports whether the track at path stays below thresholdDBFS.
// An empty data chunk counts as silent.
func IsSilentWAV(path string, thresholdDBFS float64) (bool, SilenceMetrics, error) {
	metrics, err := Measure(path)
	if err != nil {
		return false, SilenceMetrics{}, err
	}
	if metrics.Samples == 0 || math.IsInf(metrics.PeakdBFS, -1) {
		return true, metrics, nil
	}
	return metrics.RMSdBFS <= thresholdDBFS && metrics.PeakdBFS <= thresholdDBFS+peakHeadroomDB, metrics, nil
}

// Measure streams the data chunk of a WAV file and computes RMS and peak
// levels. Long tracks are read in fixed-size blocks.
func Measure(path string) (SilenceMetrics, error) {
	f, err := os.Open(path)
	if err != nil {
		return SilenceMetrics{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	s, err := parseHeader(f)
	if err != nil {
		return SilenceMetrics{}, err
	}
	decode, width, err := sampleDecoder(s.format, uint16(s.info.BitsPerSample))
	if err != nil {
		return SilenceMetrics{}, err
	}

	if _, err := f.Seek(s.dataOffset, io.SeekStart); err != nil {
		return SilenceMetrics{}, fmt.Errorf("seek wav data: %w", err)
	}
	data := bufio.NewReaderSize(io.LimitReader(f, s.dataSize), 64*1024)

	var (
		peak, sumSquares float64
		samples          int64
		sample           = make([]byte, width)
	)
	for {
		if _, err := io.ReadFull(data, sample); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return SilenceMetrics{}, fmt.Errorf("read wav data: %w", err)
		}
		v := decode(sample)
		peak = math.Max(peak, math.Abs(v))
		sumSquares += v * v
		samples++
	}

	if samples == 0 {
		return SilenceMetrics{RMSdBFS: math.Inf(-1), PeakdBFS: math.Inf(-1)}, nil
	}
	return SilenceMetrics{
		RMSdBFS:  toDBFS(math.Sqrt(sumSquares / float64(samples))),
		PeakdBFS: toDBFS(peak),
		Samples:  samples,
	}, nil
}

func toDBFS(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(amplitude)
}
