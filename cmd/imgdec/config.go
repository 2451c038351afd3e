package main

import (
	"runtime"

	"github.com/spf13/pflag"

	"github.com/fumiama/imgdec"
)

// Config holds the decode command's runtime configuration.
type Config struct {
	OutDir         string
	PNG            bool
	Jobs           int
	MaxWidth       int
	MaxHeight      int
	MaxInputBytes  int64
	MaxOutputBytes int64
	RejectAnimated bool
}

// bindFlags registers cfg's fields on fs.
func (cfg *Config) bindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&cfg.OutDir, "out", "o", ".", "Output directory")
	fs.BoolVar(&cfg.PNG, "png", false, "Write PNG instead of raw RGBA")
	fs.IntVarP(&cfg.Jobs, "jobs", "j", runtime.NumCPU(), "Number of files decoded concurrently")
	fs.IntVar(&cfg.MaxWidth, "max-width", imgdec.DefaultMaxDimension, "Largest accepted width")
	fs.IntVar(&cfg.MaxHeight, "max-height", imgdec.DefaultMaxDimension, "Largest accepted height")
	fs.Int64Var(&cfg.MaxInputBytes, "max-input", imgdec.DefaultMaxInputBytes, "Largest accepted input in bytes")
	fs.Int64Var(&cfg.MaxOutputBytes, "max-output", imgdec.DefaultMaxOutputBytes, "Largest decoded buffer in bytes")
	fs.BoolVar(&cfg.RejectAnimated, "reject-animated", false, "Fail on multi-frame input instead of taking the first frame")
}

// Decoder builds the engine configured by cfg.
func (cfg *Config) Decoder() *imgdec.Decoder {
	policy := imgdec.FirstFrame
	if cfg.RejectAnimated {
		policy = imgdec.RejectAnimated
	}
	return imgdec.NewDecoder(
		imgdec.WithLimits(imgdec.Limits{
			MaxWidth:       cfg.MaxWidth,
			MaxHeight:      cfg.MaxHeight,
			MaxInputBytes:  cfg.MaxInputBytes,
			MaxOutputBytes: cfg.MaxOutputBytes,
		}),
		imgdec.WithAnimation(policy),
	)
}
