// Command imgdec inspects and decodes images with the imgdec engine.
//
// Usage:
//
//	imgdec info photo.jpg icon.png
//	imgdec decode --out /tmp/rgba --jobs 8 *.webp
//	imgdec decode --png --max-width 4096 --reject-animated anim.gif
//
// decode writes one raw RGBA8 buffer per input (NAME.WxH.rgba), or a PNG
// rendering of it with --png. Failures print the error kind verbatim.
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("imgdec: ")
	if err := newRootCmd().Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "imgdec",
		Short:         "Decode JPEG, PNG, WebP, GIF and BMP images to raw RGBA",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newInfoCmd(), newDecodeCmd())
	return root
}
