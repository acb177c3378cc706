// Package config defines the core option surface and loads it from yaml.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// C-stick functions selectable through the frontend options
const (
	CStickFunctionBoth        = "both"
	CStickFunctionCStick      = "c_stick"
	CStickFunctionTouchscreen = "touchscreen"
	CStickFunctionToggle      = "toggle"
)

// LoggingSettings defines logging configuration
type LoggingSettings struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// RendererSettings holds the options consumed by the Vulkan presentation
// bridge. Everything else in Settings belongs to the emulated core or the
// layout/input subsystems and is carried here only so the option file is a
// complete mirror of what the frontend registers.
type RendererSettings struct {
	PreferredDevice   string `yaml:"preferred_device"`   // "auto" or a name substring
	EnableValidation  bool   `yaml:"enable_validation"`  // request the Khronos validation layer (probe only)
	RenderTouchscreen bool   `yaml:"render_touchscreen"` // include the touch screen in the output layout
}

// InputSettings mirrors the analog/touch options the frontend registers
type InputSettings struct {
	Deadzone          float64 `yaml:"deadzone"`
	ResponseCurve     float64 `yaml:"response_curve"`
	AnalogFunction    string  `yaml:"analog_function"` // see CStickFunction* constants
	AnalogCStick      bool    `yaml:"analog_c_stick"`
	AnalogTouch       bool    `yaml:"analog_touch"`
	MouseTouchscreen  bool    `yaml:"mouse_touchscreen"`
	TouchTouchscreen  bool    `yaml:"touch_touchscreen"`
	ToggleSwapScreens bool    `yaml:"toggle_swap_screens"`
}

// CoreSettings holds options forwarded to the emulated core
type CoreSettings struct {
	FilePath       string  `yaml:"file_path"`
	MaxSpeed       int     `yaml:"max_speed"`
	SpeedupRatio   float64 `yaml:"speedup_ratio"`
	SpeedupEnabled bool    `yaml:"speedup_enabled"`
	SwapScreens    bool    `yaml:"swap_screens"`
	Language       string  `yaml:"language"`
}

// Settings is the full option file for the core
type Settings struct {
	Core     CoreSettings     `yaml:"core"`
	Renderer RendererSettings `yaml:"renderer"`
	Input    InputSettings    `yaml:"input"`
	Logging  LoggingSettings  `yaml:"logging"`
}

// Default returns a Settings populated with the frontend's default options
func Default() *Settings {
	return &Settings{
		Core: CoreSettings{
			SpeedupRatio: 1.0,
		},
		Renderer: RendererSettings{
			PreferredDevice:   "auto",
			RenderTouchscreen: true,
		},
		Input: InputSettings{
			Deadzone:       1.0,
			ResponseCurve:  1.0,
			AnalogFunction: CStickFunctionBoth,
			AnalogCStick:   true,
			AnalogTouch:    true,
		},
		Logging: LoggingSettings{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads and parses a yaml settings file, applying defaults for
// anything the file leaves unset
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
