package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Session is the per-session configuration loaded at startup. Everything here
// is fixed for the lifetime of a session; the core never re-reads it.
type Session struct {
	PlayerCount int `yaml:"player_count"`
	LocalPlayer int `yaml:"local_player"`

	TickRateHz      int `yaml:"tick_rate_hz"`
	InputDelayTicks int `yaml:"input_delay_ticks"`

	InputBufferFrames int `yaml:"input_buffer_frames"`
	PendingCapacity   int `yaml:"pending_capacity"`
	SnapshotMarginB   int `yaml:"snapshot_margin_bytes"`

	Replay Replay `yaml:"replay"`
}

type Replay struct {
	Dir              string `yaml:"dir"`
	CatalogPath      string `yaml:"catalog_path"`
	ArchiveOnStop    bool   `yaml:"archive_on_stop"`
	FlushEveryFrames int    `yaml:"flush_every_frames"`
}

func Default() Session {
	return Session{
		PlayerCount:       2,
		LocalPlayer:       0,
		TickRateHz:        60,
		InputDelayTicks:   2,
		InputBufferFrames: 120,
		PendingCapacity:   256,
		SnapshotMarginB:   64,
		Replay: Replay{
			Dir:              "replays",
			CatalogPath:      "replays/catalog.db",
			FlushEveryFrames: 30,
		},
	}
}

// Load reads a session config, applying defaults for anything the file omits.
func Load(path string) (Session, error) {
	s := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("session.yaml: %w", err)
	}
	return s, s.validate()
}

func (s Session) validate() error {
	if s.PlayerCount < 1 || s.PlayerCount > 8 {
		return fmt.Errorf("session.yaml: player_count %d out of range 1..8", s.PlayerCount)
	}
	if s.LocalPlayer < 0 || s.LocalPlayer >= s.PlayerCount {
		return fmt.Errorf("session.yaml: local_player %d out of range for %d players", s.LocalPlayer, s.PlayerCount)
	}
	if s.TickRateHz <= 0 {
		return fmt.Errorf("session.yaml: tick_rate_hz must be positive")
	}
	if s.InputBufferFrames < 16 {
		return fmt.Errorf("session.yaml: input_buffer_frames %d too small", s.InputBufferFrames)
	}
	return nil
}
