package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mrjoshuak/go-jp2/box"
	"github.com/mrjoshuak/go-jp2/stream"
)

func newBoxesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "boxes FILE",
		Short: "List the box structure of a JP2 file",
		Long: `List every box with its offset, header length, type and registry name.
Superboxes are expanded; contents are not parsed.

Examples:
  jp2dump boxes image.jp2
  jp2dump boxes --color=false image.jp2 > boxes.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			src := stream.NewReader(f)
			end, err := src.Length()
			if err != nil {
				return err
			}
			a.log.Debug("listing boxes", zap.String("file", args[0]), zap.Int64("size", end))
			return listBoxes(cmd.OutOrStdout(), src, 0, end, 0)
		},
	}
}

var (
	offsetColor = color.New(color.FgHiBlack)
	superColor  = color.New(color.FgCyan, color.Bold)
	streamColor = color.New(color.FgYellow)
	typeColor   = color.New(color.FgGreen)
)

// listBoxes prints the boxes between start and end, descending into
// superboxes.
func listBoxes(w io.Writer, src box.Source, start, end int64, depth int) error {
	for pos := start; pos < end; {
		h, err := box.ReadHeader(src, pos)
		if err != nil {
			return err
		}

		c := typeColor
		switch {
		case box.IsSuperBox(h.Type):
			c = superColor
		case h.Type == box.TypeContCodestream:
			c = streamColor
		}
		offsetColor.Fprintf(w, "%10d  ", pos)
		fmt.Fprint(w, strings.Repeat("  ", depth))
		c.Fprintf(w, "%-4s", h.Type)
		fmt.Fprintf(w, "  %d bytes  %s", h.Size(), box.TypeToName(h.Type))
		if h.Length == 1 {
			fmt.Fprint(w, "  (extended length)")
		}
		if h.Length == 0 {
			fmt.Fprint(w, "  (to end of file)")
		}
		fmt.Fprintln(w)

		if box.IsSuperBox(h.Type) {
			if err := listBoxes(w, src, h.Offset, h.Offset+h.ContentSize, depth+1); err != nil {
				return err
			}
		}
		if h.Length == 0 {
			break
		}
		pos += h.Size()
	}
	return nil
}
