package presets

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// HardwarePreference controls whether a preset may, must, or must not use a
// hardware acceleration backend.
type HardwarePreference string

const (
	HardwareRequired  HardwarePreference = "required"
	HardwarePreferred HardwarePreference = "preferred"
	HardwareDisabled  HardwarePreference = "disabled"
)

// Preset is a named transcode profile. Presets are created and edited
// externally; the engine treats them as read-only configuration.
type Preset struct {
	Name          string             `json:"-"`
	Codec         string             `json:"codec"`
	Scale         string             `json:"scale"`
	Container     string             `json:"container"`
	AudioCodec    string             `json:"audio_codec"`
	AudioBitrate  string             `json:"audio_bitrate,omitempty"`
	CRF           *int               `json:"crf,omitempty"`
	Bitrate       string             `json:"bitrate,omitempty"`
	Hardware      HardwarePreference `json:"hardware,omitempty"`
	AllowFallback bool               `json:"allow_fallback"`
}

// Store holds the loaded preset catalogue.
type Store struct {
	presets map[string]Preset
}

type presetsFile struct {
	Presets map[string]Preset `json:"presets"`
}

// Load reads and validates a presets JSON file.
func Load(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates presets JSON.
func Parse(raw []byte) (*Store, error) {
	var file presetsFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse presets file: %w", err)
	}
	store := &Store{presets: make(map[string]Preset, len(file.Presets))}
	for name, preset := range file.Presets {
		preset.Name = name
		preset.normalize()
		if err := preset.Validate(); err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
		store.presets[name] = preset
	}
	return store, nil
}

// Get returns the named preset.
func (s *Store) Get(name string) (Preset, bool) {
	preset, ok := s.presets[name]
	return preset, ok
}

// Names returns the sorted preset names.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.presets))
	for name := range s.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Preset) normalize() {
	p.Codec = strings.ToLower(strings.TrimSpace(p.Codec))
	p.Scale = strings.ToLower(strings.TrimSpace(p.Scale))
	p.Container = strings.ToLower(strings.TrimSpace(p.Container))
	p.AudioCodec = strings.ToLower(strings.TrimSpace(p.AudioCodec))
	if p.Hardware == "" {
		p.Hardware = HardwarePreferred
	}
}

// Validate checks the preset against the container/codec compatibility
// matrix and the quality-option rules.
func (p Preset) Validate() error {
	matrix, ok := containerMatrix[p.Container]
	if !ok {
		return fmt.Errorf("unsupported container %q (allowed: %s)", p.Container, strings.Join(containerNames(), ", "))
	}
	if !contains(matrix.video, p.Codec) {
		return fmt.Errorf("invalid video codec %q for %q (valid: %s)", p.Codec, p.Container, strings.Join(matrix.video, ", "))
	}
	if !contains(matrix.audio, p.AudioCodec) {
		return fmt.Errorf("invalid audio codec %q for %q (valid: %s)", p.AudioCodec, p.Container, strings.Join(matrix.audio, ", "))
	}
	if p.Scale != "" {
		if _, ok := resolutionLadder[p.Scale]; !ok {
			return fmt.Errorf("invalid scale %q (valid: 360p, 480p, 720p, 1080p, 2160p)", p.Scale)
		}
	}
	if p.CRF != nil {
		if *p.CRF < 0 || *p.CRF > 51 {
			return fmt.Errorf("crf must be between 0 and 51, got %d", *p.CRF)
		}
		if p.Bitrate != "" {
			return fmt.Errorf("crf and bitrate cannot both be set")
		}
	}
	if p.Bitrate != "" && !hasRateSuffix(p.Bitrate) {
		return fmt.Errorf("bitrate must end with 'k' or 'M', got %q", p.Bitrate)
	}
	if p.AudioBitrate != "" {
		if p.AudioCodec == "copy" {
			return fmt.Errorf("audio_bitrate cannot be set when audio codec is copy")
		}
		if !hasRateSuffix(p.AudioBitrate) {
			return fmt.Errorf("audio_bitrate must end with 'k' or 'M', got %q", p.AudioBitrate)
		}
		if !contains([]string{"aac", "opus", "libopus"}, p.AudioCodec) {
			return fmt.Errorf("audio_bitrate is only valid for aac, opus, and libopus; got %q", p.AudioCodec)
		}
	}
	switch p.Hardware {
	case HardwareRequired, HardwarePreferred, HardwareDisabled:
	default:
		return fmt.Errorf("hardware must be one of required, preferred, disabled; got %q", p.Hardware)
	}
	return nil
}

type codecMatrix struct {
	video []string
	audio []string
}

var containerMatrix = map[string]codecMatrix{
	".mp4":  {video: []string{"h264", "hevc"}, audio: []string{"aac", "copy"}},
	".mkv":  {video: []string{"h264", "hevc", "vp9"}, audio: []string{"aac", "flac", "opus", "libopus", "copy"}},
	".webm": {video: []string{"vp9", "av1"}, audio: []string{"opus", "libopus"}},
	".mov":  {video: []string{"h264", "hevc"}, audio: []string{"aac", "copy"}},
}

var resolutionLadder = map[string][2]int{
	"360p":  {640, 360},
	"480p":  {854, 480},
	"720p":  {1280, 720},
	"1080p": {1920, 1080},
	"2160p": {3840, 2160},
}

// ParseResolution converts a ladder name into width and height in pixels.
// Unknown values map to 720p, matching the encoder's historical behavior.
func ParseResolution(scale string) (int, int) {
	if dims, ok := resolutionLadder[strings.ToLower(strings.TrimSpace(scale))]; ok {
		return dims[0], dims[1]
	}
	return 1280, 720
}

// CeilingHeight returns the vertical resolution ceiling for a scale name, or
// 0 when the preset imposes no ceiling.
func CeilingHeight(scale string) int {
	if dims, ok := resolutionLadder[strings.ToLower(strings.TrimSpace(scale))]; ok {
		return dims[1]
	}
	return 0
}

func containerNames() []string {
	names := make([]string, 0, len(containerMatrix))
	for name := range containerMatrix {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

func hasRateSuffix(value string) bool {
	return strings.HasSuffix(value, "k") || strings.HasSuffix(value, "M")
}
