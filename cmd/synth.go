// File: cmd/synth.go
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/clickseq/api/schemas"
	"github.com/xkilldash9x/clickseq/internal/browser/dom"
	"github.com/xkilldash9x/clickseq/internal/observability"
)

// synthOptions are the flags of the synth command.
type synthOptions struct {
	file  string
	css   string
	xpath string
	smart bool
}

func newSynthCmd() *cobra.Command {
	opts := &synthOptions{}

	synthCmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize a selector for an element of a saved HTML page",
		Long: `Parses an HTML document, locates one element with --css or --xpath and
prints the selector the picker would produce for it. Use "-" as the file to
read standard input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if opts.file != "-" {
				f, err := os.Open(opts.file)
				if err != nil {
					return fmt.Errorf("failed to open document: %w", err)
				}
				defer f.Close()
				in = f
			}
			selector, err := opts.synthesize(in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), selector)
			return nil
		},
	}

	synthCmd.Flags().StringVar(&opts.file, "file", "", `HTML document to read ("-" for stdin)`)
	synthCmd.Flags().StringVar(&opts.css, "css", "", "CSS selector locating the element")
	synthCmd.Flags().StringVar(&opts.xpath, "xpath", "", "XPath expression locating the element")
	synthCmd.Flags().BoolVar(&opts.smart, "smart", false, "synthesize a short selector from stable attributes")
	_ = synthCmd.MarkFlagRequired("file")
	synthCmd.MarkFlagsMutuallyExclusive("css", "xpath")
	synthCmd.MarkFlagsOneRequired("css", "xpath")
	return synthCmd
}

// synthesize parses r, locates the element and returns its selector.
func (o *synthOptions) synthesize(r io.Reader) (string, error) {
	doc, err := dom.ParseDocument(r)
	if err != nil {
		return "", err
	}

	var el *html.Node
	switch {
	case o.css != "":
		el, err = doc.FindFirst(o.css)
	case o.xpath != "":
		el, err = doc.FindXPath(o.xpath)
	default:
		return "", errors.New("one of --css or --xpath is required")
	}
	if err != nil {
		return "", err
	}

	synth := dom.NewSynthesizer(doc, observability.GetLogger())
	return synth.Synthesize(el, schemas.ModeFromSmart(o.smart))
}
