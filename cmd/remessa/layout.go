package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/csg33k/remessa-generator/internal/adapters/cnab/layout"
)

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Inspect record layouts",
}

var layoutCheckCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Validate a layout file and print its records",
	Long:  "Without a file the built-in 150-column layout is printed.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		l, err := layout.Load(path)
		if err != nil {
			return err
		}

		fmt.Println(okStyle.Render(fmt.Sprintf("✓ %s (%d columns)", l.Name, l.LineWidth)))
		for _, kind := range layout.Kinds() {
			rec := l.Record(kind)
			fmt.Println(boldStyle.Render(fmt.Sprintf("%s  marker %q", kind, rec.Marker)))
			pos := 1
			for _, f := range rec.Fields {
				fmt.Printf("  %3d-%3d  %-20s %s\n", pos, pos+f.Width-1, f.Name, dimStyle.Render(f.Kind.String()))
				pos += f.Width
			}
		}
		return nil
	},
}

func init() {
	layoutCmd.AddCommand(layoutCheckCmd)
}
