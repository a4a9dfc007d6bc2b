package device

import (
	"fmt"

	"github.com/junsooki/camview/internal/log"
)

// ListSupportedModes flattens encodings × resolutions × frame rates into a
// list ordered encoding-major, then resolution, then frame rate, in the
// order the driver reported them. A failing probe for one encoding drops
// that encoding only. The result is built fresh on every call.
func ListSupportedModes(p Prober) ([]CaptureFormat, error) {
	encodings, err := p.Encodings()
	if err != nil {
		return nil, fmt.Errorf("%w: list encodings: %v", ErrEnumeration, err)
	}

	modes := []CaptureFormat{}
	for _, enc := range encodings {
		sizes, err := p.Resolutions(enc)
		if err != nil {
			log.Component("device").Debug("skipping encoding", "encoding", enc, "error", err)
			continue
		}
		for _, s := range sizes {
			for _, fps := range s.FrameRates {
				modes = append(modes, CaptureFormat{
					Resolution: s.Resolution,
					Encoding:   enc,
					FrameRate:  fps,
				})
			}
		}
	}
	return modes, nil
}

// defaultFormat picks the largest resolution of the first encoding, at the
// highest rate offered for it.
func defaultFormat(modes []CaptureFormat) (CaptureFormat, bool) {
	if len(modes) == 0 {
		return CaptureFormat{}, false
	}
	best := modes[0]
	for _, m := range modes[1:] {
		if m.Encoding != best.Encoding {
			break
		}
		switch {
		case m.Resolution.Area() > best.Resolution.Area():
			best = m
		case m.Resolution == best.Resolution && m.FrameRate > best.FrameRate:
			best = m
		}
	}
	return best, true
}
