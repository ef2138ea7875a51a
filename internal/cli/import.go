package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/tabstash/internal/domain"
	"github.com/MrSnakeDoc/tabstash/internal/importer"
	"github.com/MrSnakeDoc/tabstash/internal/sources/homepage"
	"github.com/MrSnakeDoc/tabstash/internal/sources/text"
	"github.com/MrSnakeDoc/tabstash/internal/store/memory"
	"github.com/MrSnakeDoc/tabstash/internal/store/sqlite"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	Owner     string
	Bookmarks string // Homepage bookmarks.yaml or services.yaml
	TextFile  string // free text, "-" for stdin
	Mode      string
	Key       string
	DBPath    string
}

// NewImportCommand imports links into the database without a running server.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import links from a Homepage export or free text",
		Long: `Import links for one owner directly into the database.

Exactly one of --bookmarks or --text must be given. Links already stored
for the owner are reused according to --mode.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), rootOpts, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Owner, "owner", "", "owner the links are imported for (required)")
	cmd.Flags().StringVar(&opts.Bookmarks, "bookmarks", "", "path to a Homepage bookmarks.yaml or services.yaml")
	cmd.Flags().StringVar(&opts.TextFile, "text", "", "path to a text file to scan for links, - for stdin")
	cmd.Flags().StringVar(&opts.Mode, "mode", string(domain.DedupeAuto), "dedupe mode (auto|merge|forceNew)")
	cmd.Flags().StringVar(&opts.Key, "key", "", "idempotency key")
	cmd.Flags().StringVar(&opts.DBPath, "db", "tabstash.db", "sqlite database path")
	_ = cmd.MarkFlagRequired("owner")
	cmd.MarkFlagsMutuallyExclusive("bookmarks", "text")
	cmd.MarkFlagsOneRequired("bookmarks", "text")

	return cmd
}

func runImport(ctx context.Context, rootOpts *RootOptions, opts *ImportOptions, stdin io.Reader, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	mode, err := domain.ParseDedupeMode(opts.Mode)
	if err != nil {
		return err
	}

	items, err := readItems(opts, stdin)
	if err != nil {
		return err
	}

	log := rootOpts.logger()
	defer func() { _ = log.Sync() }()

	store, err := sqlite.Open(opts.DBPath, log)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	// replay records only live for this process
	svc := importer.NewService(store, memory.NewReplayStore(domain.DefaultReplayTTL), log)
	result, err := svc.Import(ctx, domain.ImportRequest{
		OwnerID:        opts.Owner,
		IdempotencyKey: opts.Key,
		Items:          items,
		DedupeMode:     mode,
	})
	if err != nil {
		return err
	}

	return writeResult(w, rootOpts.Format, result)
}

func readItems(opts *ImportOptions, stdin io.Reader) ([]domain.RawImportItem, error) {
	if opts.Bookmarks != "" {
		return homepage.NewLoader(opts.Bookmarks).Load()
	}

	var (
		data []byte
		err  error
	)
	if opts.TextFile == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(opts.TextFile)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read text: %w", err)
	}
	return text.Extract(string(data))
}

func writeResult(w io.Writer, format string, result domain.ImportResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	var errs []error
	for _, r := range result.Created {
		_, err := fmt.Fprintf(w, "created  %s  %s\n", r.ID, r.CanonicalURL)
		errs = append(errs, err)
	}
	for _, r := range result.Reused {
		_, err := fmt.Fprintf(w, "reused   %s  %s\n", r.ID, r.CanonicalURL)
		errs = append(errs, err)
	}
	_, err := fmt.Fprintf(w, "%d created, %d reused\n", len(result.Created), len(result.Reused))
	errs = append(errs, err)
	return errors.Join(errs...)
}
