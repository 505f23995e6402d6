package commands

import (
	"github.com/spf13/cobra"

	"github.com/mrjoshuak/go-jp2/tree"
)

func newTreeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tree FILE",
		Short: "Print the metadata of a JP2 file as an XML tree",
		Long: `Print the metadata boxes as a native tree (one element per box) or as a
standard tree (chroma, data, dimension, transparency and text nodes).

Examples:
  jp2dump tree image.jp2
  jp2dump tree --format standard image.jp2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, f, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			root, err := r.Metadata().AsTree(a.formatName())
			if err != nil {
				return err
			}
			return tree.Encode(cmd.OutOrStdout(), root)
		},
	}
}
