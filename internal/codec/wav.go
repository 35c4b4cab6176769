package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// wavFormatMulaw is the WAVE_FORMAT_MULAW tag (wFormatTag=7) per spec.md §6.
const wavFormatMulaw = 7

// SilenceSource holds a preloaded μ-law silence track read back with
// wrap-around by the outbound streamer (spec.md §4.5, §6).
type SilenceSource struct {
	data []byte
	pos  int
}

// LoadSilenceWAV parses a RIFF/WAVE file containing μ-law mono 8kHz 8-bit
// audio (spec.md §6). Returns an error if the format doesn't match.
func LoadSilenceWAV(path string) (*SilenceSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer file.Close()

	riffID := make([]byte, 4)
	if _, err := io.ReadFull(file, riffID); err != nil {
		return nil, fmt.Errorf("read RIFF header: %w", err)
	}
	if string(riffID) != "RIFF" {
		return nil, fmt.Errorf("not a RIFF file")
	}

	var riffSize uint32
	if err := binary.Read(file, binary.LittleEndian, &riffSize); err != nil {
		return nil, fmt.Errorf("read RIFF size: %w", err)
	}

	waveID := make([]byte, 4)
	if _, err := io.ReadFull(file, waveID); err != nil {
		return nil, fmt.Errorf("read WAVE header: %w", err)
	}
	if string(waveID) != "WAVE" {
		return nil, fmt.Errorf("not a WAVE file")
	}

	var (
		haveFmt       bool
		formatTag     uint16
		channels      uint16
		sampleRate    uint32
		bitsPerSample uint16
	)

	for {
		chunkID := make([]byte, 4)
		n, err := file.Read(chunkID)
		if n == 0 || err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read chunk id: %w", err)
		}

		var chunkSize uint32
		if err := binary.Read(file, binary.LittleEndian, &chunkSize); err != nil {
			return nil, fmt.Errorf("read chunk size: %w", err)
		}

		switch string(chunkID) {
		case "fmt ":
			if err := binary.Read(file, binary.LittleEndian, &formatTag); err != nil {
				return nil, fmt.Errorf("read format tag: %w", err)
			}
			if err := binary.Read(file, binary.LittleEndian, &channels); err != nil {
				return nil, fmt.Errorf("read channels: %w", err)
			}
			if err := binary.Read(file, binary.LittleEndian, &sampleRate); err != nil {
				return nil, fmt.Errorf("read sample rate: %w", err)
			}
			// Skip byte rate (4) and block align (2).
			if _, err := file.Seek(6, io.SeekCurrent); err != nil {
				return nil, fmt.Errorf("seek past byte rate: %w", err)
			}
			if err := binary.Read(file, binary.LittleEndian, &bitsPerSample); err != nil {
				return nil, fmt.Errorf("read bits per sample: %w", err)
			}
			// fmt chunk may carry extra bytes beyond the 16 we consumed.
			if rem := int64(chunkSize) - 16; rem > 0 {
				if _, err := file.Seek(rem, io.SeekCurrent); err != nil {
					return nil, fmt.Errorf("seek past fmt extension: %w", err)
				}
			}
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("data chunk before fmt chunk")
			}
			if formatTag != wavFormatMulaw {
				return nil, fmt.Errorf("unsupported wFormatTag %d (want %d, μ-law)", formatTag, wavFormatMulaw)
			}
			if channels != 1 {
				return nil, fmt.Errorf("unsupported channel count %d (want 1)", channels)
			}
			if sampleRate != 8000 {
				return nil, fmt.Errorf("unsupported sample rate %d (want 8000)", sampleRate)
			}
			if bitsPerSample != 8 {
				return nil, fmt.Errorf("unsupported bits per sample %d (want 8)", bitsPerSample)
			}

			data := make([]byte, chunkSize)
			if _, err := io.ReadFull(file, data); err != nil {
				return nil, fmt.Errorf("read data chunk: %w", err)
			}
			slog.Info("[codec] loaded silence WAV", "path", path, "bytes", len(data))
			return &SilenceSource{data: data}, nil

		default:
			if _, err := file.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				return nil, fmt.Errorf("skip chunk %q: %w", string(chunkID), err)
			}
		}
	}

	return nil, fmt.Errorf("data chunk not found")
}

// Next returns the next FrameSize bytes from the silence track, wrapping
// around to the start when the track is exhausted (spec.md §4.5).
func (s *SilenceSource) Next() []byte {
	if len(s.data) == 0 {
		return SilenceFrame()
	}

	out := make([]byte, FrameSize)
	for i := 0; i < FrameSize; i++ {
		out[i] = s.data[s.pos]
		s.pos++
		if s.pos >= len(s.data) {
			s.pos = 0
		}
	}
	return out
}
