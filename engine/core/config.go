package core

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/exp/constraints"
)

// Forever is the timeout meaning "no timeout".
const Forever = time.Duration(1<<63 - 1)

const (
	DefaultFramesInFlight = 2
	DefaultMaxTextures    = 1024
	DefaultMaxMeshes      = 4096
)

type WindowConfig struct {
	Title  string `toml:"title"`
	PosX   uint32 `toml:"pos_x"`
	PosY   uint32 `toml:"pos_y"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type RendererConfig struct {
	FramesInFlight uint32 `toml:"frames_in_flight"`
	MaxTextures    uint32 `toml:"max_textures"`
	MaxMeshes      uint32 `toml:"max_meshes"`
	// PresentMode is "mailbox" or "fifo". Mailbox falls back to fifo when
	// the surface does not support it.
	PresentMode string `toml:"present_mode"`
	Validation  bool   `toml:"validation"`
	// FenceTimeoutMS bounds the frame slot fence wait. Zero waits forever.
	FenceTimeoutMS uint32 `toml:"fence_timeout_ms"`
}

func (r RendererConfig) FenceTimeout() time.Duration {
	if r.FenceTimeoutMS == 0 {
		return Forever
	}
	return time.Duration(r.FenceTimeoutMS) * time.Millisecond
}

type PostConfig struct {
	Exposure       float32 `toml:"exposure"`
	Gamma          float32 `toml:"gamma"`
	BloomStrength  float32 `toml:"bloom_strength"`
	BloomThreshold float32 `toml:"bloom_threshold"`
	BloomKnee      float32 `toml:"bloom_knee"`
}

type AssetsConfig struct {
	Root    string `toml:"root"`
	Shaders string `toml:"shaders"`
	// Scene and Font are relative to Root.
	Scene string `toml:"scene"`
	Font  string `toml:"font"`
	Watch   bool   `toml:"watch"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Config is the engine configuration file.
type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Post     PostConfig     `toml:"post"`
	Assets   AssetsConfig   `toml:"assets"`
	Log      LogConfig      `toml:"log"`
}

func DefaultConfig() Config {
	return Config{
		Window: WindowConfig{
			Title:  "Prism",
			PosX:   100,
			PosY:   100,
			Width:  1280,
			Height: 720,
		},
		Renderer: RendererConfig{
			FramesInFlight: DefaultFramesInFlight,
			MaxTextures:    DefaultMaxTextures,
			MaxMeshes:      DefaultMaxMeshes,
			PresentMode:    "mailbox",
		},
		Post: PostConfig{
			Exposure:       1.0,
			Gamma:          2.2,
			BloomStrength:  0.04,
			BloomThreshold: 1.0,
			BloomKnee:      0.5,
		},
		Assets: AssetsConfig{
			Root:    "assets",
			Shaders: "assets/shaders",
			Scene:   "scenes/default.toml",
			Font:    "fonts/mono.fnt",
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfig reads a TOML configuration file on top of DefaultConfig.
// A missing file is not an error: the defaults are returned.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}
	if err := ParseConfig(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, nil
}

// ParseConfig decodes data into cfg, leaving absent keys at their current
// value, then normalizes the result.
func ParseConfig(data []byte, cfg *Config) error {
	if err := toml.Unmarshal(data, cfg); err != nil {
		return err
	}
	cfg.normalize()
	return nil
}

func (c *Config) normalize() {
	c.Renderer.FramesInFlight = Clamp(c.Renderer.FramesInFlight, 1, 3)
	if c.Renderer.MaxTextures == 0 {
		c.Renderer.MaxTextures = DefaultMaxTextures
	}
	// Slot 0 is the fallback; anything below 2 leaves no room for assets.
	c.Renderer.MaxTextures = Clamp(c.Renderer.MaxTextures, 2, 1<<16)
	if c.Renderer.MaxMeshes == 0 {
		c.Renderer.MaxMeshes = DefaultMaxMeshes
	}
	if c.Renderer.PresentMode != "fifo" {
		c.Renderer.PresentMode = "mailbox"
	}
	if c.Post.Gamma <= 0 {
		c.Post.Gamma = 2.2
	}
	if c.Post.Exposure <= 0 {
		c.Post.Exposure = 1.0
	}
	c.Post.BloomStrength = Clamp(c.Post.BloomStrength, 0, 1)
	c.Window.Width = Clamp(c.Window.Width, 1, 16384)
	c.Window.Height = Clamp(c.Window.Height, 1, 16384)
}

func Clamp[T constraints.Ordered](value, min, max T) T {
	if value <= min {
		return min
	} else if value >= max {
		return max
	}
	return value
}
