package encoding

import (
	"strconv"
	"strings"
)

// progressParser consumes the key=value lines ffmpeg emits under
// "-progress pipe:1" and converts elapsed output time into a completion
// fraction against the known source duration. Reported fractions never
// decrease; out-of-order markers clamp to the last value.
type progressParser struct {
	duration float64
	last     float64
	ended    bool
}

func newProgressParser(sourceDuration float64) *progressParser {
	return &progressParser{duration: sourceDuration}
}

// consume parses one progress line. It returns the current fraction and
// whether this line changed it.
func (p *progressParser) consume(line string) (float64, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return p.last, false
	}
	value = strings.TrimSpace(value)

	switch key {
	case "progress":
		if value == "end" {
			p.ended = true
			return p.advance(1)
		}
	case "out_time_us", "out_time_ms":
		// Both keys carry microseconds; out_time_ms is misnamed upstream.
		micros, err := strconv.ParseInt(value, 10, 64)
		if err != nil || micros < 0 {
			return p.last, false
		}
		return p.fromSeconds(float64(micros) / 1e6)
	case "out_time":
		seconds, err := parseClock(value)
		if err != nil {
			return p.last, false
		}
		return p.fromSeconds(seconds)
	}
	return p.last, false
}

// Ended reports whether ffmpeg emitted its final progress marker.
func (p *progressParser) Ended() bool {
	return p.ended
}

func (p *progressParser) fromSeconds(seconds float64) (float64, bool) {
	if p.duration <= 0 {
		return p.last, false
	}
	fraction := seconds / p.duration
	if fraction > 1 {
		fraction = 1
	}
	return p.advance(fraction)
}

func (p *progressParser) advance(fraction float64) (float64, bool) {
	if fraction <= p.last {
		return p.last, false
	}
	p.last = fraction
	return p.last, true
}

// parseClock converts ffmpeg's HH:MM:SS.micro timestamps into seconds.
func parseClock(value string) (float64, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return strconv.ParseFloat(value, 64)
	}
	hours, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, err
	}
	return hours*3600 + minutes*60 + seconds, nil
}
