package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

var (
	ErrUnsupportedWAV = errors.New("unsupported wav format")
	ErrInvalidWAV     = errors.New("invalid wav file")
)

const (
	formatPCM   = 1
	formatFloat = 3
)

// Info describes the PCM stream of a WAV file.
type Info struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	Duration      time.Duration
}

// stream is the parsed header of a WAV file plus the location of its samples.
type stream struct {
	format     uint16
	info       Info
	dataOffset int64
	dataSize   int64
}

// ReadInfo reads the WAV header of an extracted audio track.
func ReadInfo(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	s, err := parseHeader(f)
	if err != nil {
		return Info{}, err
	}
	return s.info, nil
}

// parseHeader walks the RIFF chunks up to the end of the file and leaves r
// positioned arbitrarily.
func parseHeader(r io.ReadSeeker) (stream, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return stream{}, truncated(err, "read wav header")
	}
	if string(riff[:4]) != "RIFF" || string(riff[8:]) != "WAVE" {
		return stream{}, ErrInvalidWAV
	}

	var (
		s       stream
		hasFmt  bool
		hasData bool
		chunk   [8]byte
	)
	for {
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return stream{}, fmt.Errorf("read wav chunk header: %w", err)
		}
		id := string(chunk[:4])
		size := int64(binary.LittleEndian.Uint32(chunk[4:]))

		start, err := r.Seek(0, io.SeekCurrent)
		if err != nil {
			return stream{}, fmt.Errorf("locate wav chunk %s: %w", id, err)
		}

		switch id {
		case "fmt ":
			if err := s.readFormat(r, size); err != nil {
				return stream{}, err
			}
			hasFmt = true
		case "data":
			s.dataOffset, s.dataSize = start, size
			hasData = true
		}

		// Chunks are word aligned.
		next := start + size + size%2
		if _, err := r.Seek(next, io.SeekStart); err != nil {
			return stream{}, fmt.Errorf("skip wav chunk %s: %w", id, err)
		}
	}

	if !hasFmt || !hasData {
		return stream{}, ErrInvalidWAV
	}
	if _, _, err := sampleDecoder(s.format, uint16(s.info.BitsPerSample)); err != nil {
		return stream{}, err
	}

	bytesPerSecond := int64(s.info.SampleRate) * int64(s.info.Channels) * int64(s.info.BitsPerSample/8)
	if bytesPerSecond > 0 {
		s.info.Duration = time.Duration(s.dataSize * int64(time.Second) / bytesPerSecond)
	}
	return s, nil
}

func (s *stream) readFormat(r io.Reader, size int64) error {
	if size < 16 {
		return ErrInvalidWAV
	}

	var fmtChunk [16]byte
	if _, err := io.ReadFull(r, fmtChunk[:]); err != nil {
		return truncated(err, "read wav fmt chunk")
	}

	s.format = binary.LittleEndian.Uint16(fmtChunk[0:2])
	s.info.Channels = int(binary.LittleEndian.Uint16(fmtChunk[2:4]))
	s.info.SampleRate = int(binary.LittleEndian.Uint32(fmtChunk[4:8]))
	s.info.BitsPerSample = int(binary.LittleEndian.Uint16(fmtChunk[14:16]))
	return nil
}

func truncated(err error, op string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// sampleDecoder returns a function mapping one little-endian sample to [-1, 1]
// and the sample width in bytes.
func sampleDecoder(format, bits uint16) (func([]byte) float64, int, error) {
	switch {
	case format == formatPCM && bits == 8:
		return func(b []byte) float64 { return (float64(b[0]) - 128) / 128 }, 1, nil
	case format == formatPCM && bits == 16:
		return func(b []byte) float64 { return float64(int16(binary.LittleEndian.Uint16(b))) / 32768 }, 2, nil
	case format == formatPCM && bits == 24:
		return func(b []byte) float64 {
			v := int32(b[0]) | int32(b[1])<<8 | int32(int8(b[2]))<<16
			return float64(v) / 8388608
		}, 3, nil
	case format == formatPCM && bits == 32:
		return func(b []byte) float64 { return float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648 }, 4, nil
	case format == formatFloat && bits == 32:
		return func(b []byte) float64 { return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))) }, 4, nil
	case format == formatFloat && bits == 64:
		return func(b []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(b)) }, 8, nil
	default:
		return nil, 0, ErrUnsupportedWAV
	}
}
