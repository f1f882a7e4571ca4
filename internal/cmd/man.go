package cmd

import (
	"fmt"
	"io"

	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"
)

func writeManPage(root *cobra.Command, w io.Writer) error {
	manPage, err := mcobra.NewManPage(1, root)
	if err != nil {
		return fmt.Errorf("build man page: %w", err)
	}
	if _, err := fmt.Fprint(w, manPage.Build(roff.NewDocument())); err != nil {
		return fmt.Errorf("write man page: %w", err)
	}
	return nil
}
