package replay

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sort"
)

// Mismatch attributes one byte-level disagreement between two recordings.
type Mismatch struct {
	Frame    int32  `json:"frame"`
	Player   int    `json:"player"`
	BaseFile string `json:"base_file"`
	File     string `json:"file"`
	Offset   int    `json:"offset"` // first differing byte within the input value
}

// Report is the validator's pass/fail result.
type Report struct {
	Files          []string   `json:"files"`
	PlayerCount    int        `json:"player_count"`
	InputSize      int        `json:"input_size"`
	Seed           int64      `json:"seed"`
	FramesCompared int        `json:"frames_compared"`
	IsValid        bool       `json:"is_valid"`
	MismatchCount  int        `json:"mismatch_count"`
	Mismatches     []Mismatch `json:"mismatches,omitempty"`
}

// parsedStream is one recording decoded to frame → player → raw input bytes.
type parsedStream struct {
	path   string
	header header
	frames map[int32]map[int][]byte
}

func parseStream(path string) (parsedStream, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return parsedStream{}, err
	}
	h, err := decodeHeader(raw)
	if err != nil {
		return parsedStream{}, fmt.Errorf("%s: %w", path, err)
	}

	s := parsedStream{path: path, header: h, frames: make(map[int32]map[int][]byte)}
	pos := headerSize
	for pos < len(raw) {
		if pos+frameEntryPrefix > len(raw) {
			return parsedStream{}, fmt.Errorf("%s: truncated entry at offset %d", path, pos)
		}
		frame := int32(binary.LittleEndian.Uint32(raw[pos : pos+4]))
		mask := raw[pos+4]
		pos += frameEntryPrefix

		byPlayer := make(map[int][]byte)
		for p := 0; p < h.playerCount; p++ {
			if mask&(1<<p) == 0 {
				continue
			}
			if pos+h.inputSize > len(raw) {
				return parsedStream{}, fmt.Errorf("%s: truncated inputs at offset %d", path, pos)
			}
			byPlayer[p] = raw[pos : pos+h.inputSize]
			pos += h.inputSize
		}
		s.frames[frame] = byPlayer
	}
	return s, nil
}

// Validate loads N recordings from the same session and compares them for
// byte-exact agreement. Header disagreement (player count, input size, seed)
// means the files are not from one session and is an error, not a mismatch.
//
// For every frame present in any file, and every player, the raw input bytes
// are compared across all files that recorded that frame/player; each
// disagreement is reported once with file attribution and the first differing
// byte offset.
func Validate(paths []string) (Report, error) {
	if len(paths) == 0 {
		return Report{}, fmt.Errorf("replay: no files to validate")
	}

	streams := make([]parsedStream, 0, len(paths))
	for _, p := range paths {
		s, err := parseStream(p)
		if err != nil {
			return Report{}, err
		}
		streams = append(streams, s)
	}

	base := streams[0]
	for _, s := range streams[1:] {
		if s.header != base.header {
			return Report{}, fmt.Errorf("replay: %s header differs from %s: %+v vs %+v",
				s.path, base.path, s.header, base.header)
		}
	}

	rep := Report{
		Files:       paths,
		PlayerCount: base.header.playerCount,
		InputSize:   base.header.inputSize,
		Seed:        base.header.seed,
		IsValid:     true,
	}

	frameSet := make(map[int32]struct{})
	for _, s := range streams {
		for f := range s.frames {
			frameSet[f] = struct{}{}
		}
	}
	frames := make([]int32, 0, len(frameSet))
	for f := range frameSet {
		frames = append(frames, f)
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i] < frames[j] })

	for _, f := range frames {
		rep.FramesCompared++
		for p := 0; p < base.header.playerCount; p++ {
			var refBytes []byte
			var refFile string
			for _, s := range streams {
				got, ok := s.frames[f][p]
				if !ok {
					continue
				}
				if refBytes == nil {
					refBytes = got
					refFile = s.path
					continue
				}
				if off := firstDiff(refBytes, got); off >= 0 {
					rep.Mismatches = append(rep.Mismatches, Mismatch{
						Frame:    f,
						Player:   p,
						BaseFile: refFile,
						File:     s.path,
						Offset:   off,
					})
				}
			}
		}
	}

	rep.MismatchCount = len(rep.Mismatches)
	rep.IsValid = rep.MismatchCount == 0
	return rep, nil
}

func firstDiff(a, b []byte) int {
	if bytes.Equal(a, b) {
		return -1
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
