package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/tabstash/internal/canonical"
	"github.com/MrSnakeDoc/tabstash/internal/domain"
)

type canonOutput struct {
	URL       string `json:"url"`
	Canonical string `json:"canonical"`
	Domain    string `json:"domain,omitempty"`
}

// NewCanonCommand prints the canonical form of each argument.
func NewCanonCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "canon <url>...",
		Short: "Print canonical forms of URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := make([]canonOutput, 0, len(args))
			for _, raw := range args {
				c := canonical.Canonicalize(raw)
				out = append(out, canonOutput{URL: raw, Canonical: c, Domain: domain.DomainOf(c)})
			}

			w := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			for _, o := range out {
				if _, err := fmt.Fprintln(w, o.Canonical); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
