package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	jp2 "github.com/mrjoshuak/go-jp2"
	"github.com/mrjoshuak/go-jp2/box"
)

func newInfoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info FILE",
		Short: "Summarize the image and codestream headers",
		Long: `Print the image size, the pixel format the decoder would produce and the
codestream main header: tile grid, coding style and comments. Nothing is
decoded, so no codec is needed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, f, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return printInfo(cmd.OutOrStdout(), r)
		},
	}
}

func printInfo(w io.Writer, r *jp2.Reader) error {
	title := color.New(color.FgCyan, color.Bold)
	field := func(name, format string, args ...any) {
		title.Fprintf(w, "%-16s", name+":")
		fmt.Fprintf(w, format+"\n", args...)
	}

	cfg, err := r.Config()
	if err != nil {
		return err
	}
	pf, err := r.PixelFormat()
	if err != nil {
		return err
	}
	field("Size", "%dx%d", cfg.Width, cfg.Height)
	field("Components", "%d %v", pf.NumComponents(), pf.Depths)
	field("Color space", "%v", pf.ColorSpace)
	if pf.Alpha {
		field("Alpha", "premultiplied=%v", pf.Premultiplied)
	}
	if b := r.Metadata().ElementOf(box.TypePalette); b != nil {
		if pal, ok := b.Payload().(*box.PaletteBox); ok {
			field("Palette", "%d entries, %d columns", pal.NumEntries(), pal.NumColumns())
		}
	}

	h, err := r.CodestreamHeader()
	if errors.Is(err, jp2.ErrNoCodestream) {
		field("Codestream", "none")
		return nil
	}
	if err != nil {
		return err
	}
	loc := r.CodestreamLocation()
	field("Codestream", "%d bytes at offset %d", loc.Length, loc.Offset)
	field("Profile", "%d", h.Profile)
	field("Tiles", "%dx%d of %dx%d", h.NumTilesX, h.NumTilesY, h.TileWidth, h.TileHeight)
	cs := h.CodingStyle
	field("Progression", "%v", cs.ProgressionOrder)
	field("Layers", "%d", cs.NumLayers)
	field("Resolutions", "%d", cs.NumResolutions())
	wavelet := "9-7 irreversible"
	if cs.IsReversible() {
		wavelet = "5-3 reversible"
	}
	field("Wavelet", "%s", wavelet)
	field("Code blocks", "%dx%d", 1<<(cs.CodeBlockWidthExp+2), 1<<(cs.CodeBlockHeightExp+2))
	for _, c := range h.Comments {
		field("Comment", "%s", strings.TrimSpace(c))
	}
	return nil
}
