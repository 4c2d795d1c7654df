package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

const (
	formatPCM        = 1
	formatIEEEFloat  = 3
	formatExtensible = 0xFFFE
)

// wavHeader is the canonical 44-byte header written by EncodeWAV
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

// WAVInfo describes the fmt chunk of a WAV file
type WAVInfo struct {
	AudioFormat   uint16
	Channels      int
	SampleRate    int
	BitsPerSample int
}

// Decoded holds de-interleaved samples in [-1, 1], one slice per channel
type Decoded struct {
	Channels   [][]float32
	SampleRate int
}

// EncodeWAV encodes mono float samples as 16-bit PCM WAV
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	numChannels := uint16(1)
	bitsPerSample := uint16(16)
	dataSize := uint32(len(samples) * 2)

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   formatPCM,
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	pcm := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		pcm[i] = int16(math.Round(float64(s) * math.MaxInt16))
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*2))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, pcm); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

// ParseWAVInfo reads the fmt chunk without decoding samples
func ParseWAVInfo(data []byte) (*WAVInfo, error) {
	info, _, err := parseChunks(data)
	return info, err
}

// DecodeWAV decodes a RIFF/WAVE file. Integer PCM of 8, 16, 24 and 32 bits
// and IEEE float of 32 and 64 bits are supported.
func DecodeWAV(data []byte) (*Decoded, error) {
	info, pcm, err := parseChunks(data)
	if err != nil {
		return nil, err
	}

	bytesPerSample := info.BitsPerSample / 8
	blockAlign := bytesPerSample * info.Channels
	frames := len(pcm) / blockAlign
	if frames == 0 {
		return nil, fmt.Errorf("%w: no audio data found", ErrProcessing)
	}

	read, err := sampleReader(info)
	if err != nil {
		return nil, err
	}

	channels := make([][]float32, info.Channels)
	for c := range channels {
		channels[c] = make([]float32, frames)
	}

	for i := 0; i < frames; i++ {
		frame := pcm[i*blockAlign:]
		for c := 0; c < info.Channels; c++ {
			channels[c][i] = read(frame[c*bytesPerSample:])
		}
	}

	return &Decoded{Channels: channels, SampleRate: info.SampleRate}, nil
}

func parseChunks(data []byte) (*WAVInfo, []byte, error) {
	if len(data) < 12 {
		return nil, nil, fmt.Errorf("%w: WAV data too short: %d bytes", ErrProcessing, len(data))
	}
	if string(data[0:4]) != "RIFF" {
		return nil, nil, fmt.Errorf("%w: missing RIFF header", ErrProcessing)
	}
	if string(data[8:12]) != "WAVE" {
		return nil, nil, fmt.Errorf("%w: missing WAVE format", ErrProcessing)
	}

	var (
		info *WAVInfo
		pcm  []byte
	)

	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		end := body + size
		// Streamed WAVs (ffmpeg to a pipe) carry a bogus data size
		if end > len(data) || end < body {
			end = len(data)
		}

		switch id {
		case "fmt ":
			parsed, err := parseFmt(data[body:end])
			if err != nil {
				return nil, nil, err
			}
			info = parsed
		case "data":
			pcm = data[body:end]
		}

		offset = end
		if size%2 == 1 {
			offset++
		}
	}

	if info == nil {
		return nil, nil, fmt.Errorf("%w: missing fmt chunk", ErrProcessing)
	}
	if pcm == nil {
		return nil, nil, fmt.Errorf("%w: missing data chunk", ErrProcessing)
	}

	return info, pcm, nil
}

func parseFmt(chunk []byte) (*WAVInfo, error) {
	if len(chunk) < 16 {
		return nil, fmt.Errorf("%w: fmt chunk too short", ErrProcessing)
	}

	info := &WAVInfo{
		AudioFormat:   binary.LittleEndian.Uint16(chunk[0:2]),
		Channels:      int(binary.LittleEndian.Uint16(chunk[2:4])),
		SampleRate:    int(binary.LittleEndian.Uint32(chunk[4:8])),
		BitsPerSample: int(binary.LittleEndian.Uint16(chunk[14:16])),
	}

	// WAVE_FORMAT_EXTENSIBLE stores the real format code in the sub-format GUID
	if info.AudioFormat == formatExtensible {
		if len(chunk) < 26 {
			return nil, fmt.Errorf("%w: truncated extensible fmt chunk", ErrProcessing)
		}
		info.AudioFormat = binary.LittleEndian.Uint16(chunk[24:26])
	}

	if info.Channels <= 0 {
		return nil, fmt.Errorf("%w: invalid channel count %d", ErrProcessing, info.Channels)
	}
	if info.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: invalid sample rate %d", ErrProcessing, info.SampleRate)
	}
	if _, err := sampleReader(info); err != nil {
		return nil, err
	}

	return info, nil
}

func sampleReader(info *WAVInfo) (func([]byte) float32, error) {
	switch {
	case info.AudioFormat == formatPCM && info.BitsPerSample == 8:
		return func(b []byte) float32 {
			return (float32(b[0]) - 128) / 128
		}, nil
	case info.AudioFormat == formatPCM && info.BitsPerSample == 16:
		return func(b []byte) float32 {
			return float32(int16(binary.LittleEndian.Uint16(b))) / 32768
		}, nil
	case info.AudioFormat == formatPCM && info.BitsPerSample == 24:
		return func(b []byte) float32 {
			v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			if v&0x800000 != 0 {
				v |= ^0xFFFFFF
			}
			return float32(v) / 8388608
		}, nil
	case info.AudioFormat == formatPCM && info.BitsPerSample == 32:
		return func(b []byte) float32 {
			return float32(float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648)
		}, nil
	case info.AudioFormat == formatIEEEFloat && info.BitsPerSample == 32:
		return func(b []byte) float32 {
			return math.Float32frombits(binary.LittleEndian.Uint32(b))
		}, nil
	case info.AudioFormat == formatIEEEFloat && info.BitsPerSample == 64:
		return func(b []byte) float32 {
			return float32(math.Float64frombits(binary.LittleEndian.Uint64(b)))
		}, nil
	}

	return nil, fmt.Errorf("%w: unsupported WAV encoding (format %d, %d bits)",
		ErrProcessing, info.AudioFormat, info.BitsPerSample)
}
