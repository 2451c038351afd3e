package main

import (
	"bytes"
	"fmt"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fumiama/imgdec"
)

func newDecodeCmd() *cobra.Command {
	cfg := &Config{}
	cmd := &cobra.Command{
		Use:   "decode FILE...",
		Short: "Decode files to raw RGBA8 buffers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(cfg, args)
		},
	}
	cfg.bindFlags(cmd.Flags())
	return cmd
}

// runDecode decodes every file on its own goroutine, at most cfg.Jobs at
// a time. A file that fails to decode is logged and does not stop the
// others; failing to write a result aborts the run.
func runDecode(cfg *Config, names []string) error {
	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return errors.Wrap(err, "output directory")
	}
	dec := cfg.Decoder()
	var failed atomic.Int32
	var g errgroup.Group
	g.SetLimit(max(cfg.Jobs, 1))
	for _, name := range names {
		name := name
		g.Go(func() error {
			img, err := decodeFile(dec, name)
			if err != nil {
				log.Printf("%s: %v", name, err)
				failed.Add(1)
				return nil
			}
			out, err := writeImage(cfg, name, img)
			if err != nil {
				return errors.Wrap(err, name)
			}
			log.Printf("%s -> %s", name, out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if n := failed.Load(); n > 0 {
		return errors.Errorf("%d of %d files failed", n, len(names))
	}
	return nil
}

func decodeFile(dec imgdec.ImageDecoder, name string) (*imgdec.Image, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return dec.Decode(data)
}

// writeImage stores img in cfg.OutDir as NAME.WxH.rgba, or NAME.png
// with --png, and returns the path written.
func writeImage(cfg *Config, name string, img *imgdec.Image) (string, error) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	out := img.Data
	path := filepath.Join(cfg.OutDir, fmt.Sprintf("%s.%dx%d.rgba", base, img.Width, img.Height))
	if cfg.PNG {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img.NRGBA()); err != nil {
			return "", errors.Wrap(err, "png")
		}
		out = buf.Bytes()
		path = filepath.Join(cfg.OutDir, base+".png")
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
