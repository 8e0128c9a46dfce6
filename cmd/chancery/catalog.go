package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vsh-labs/chancery/internal/catalog"
	"github.com/vsh-labs/chancery/internal/lemma"
)

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and validate the department catalog",
	}
	cmd.AddCommand(catalogValidateCmd())
	return cmd
}

func catalogValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <catalog.json>",
		Short: "Validate a department catalog file",
		Long: `Parse and compile the catalog: every department must carry a unique id,
routing keywords, and triage rules. Compilation errors name the offending
department.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			loader := catalog.NewLoader(lemma.NewSnowball("russian"), slog.Default())
			loaded, err := loader.Load(args[0])
			if err != nil {
				return fmt.Errorf("catalog is invalid: %w", err)
			}

			totalRules := 0
			for i := range loaded.Departments {
				totalRules += len(loaded.Departments[i].TriageRules)
			}
			slog.Info("Catalog is valid",
				"path", args[0],
				"version", loaded.Version,
				"departments", len(loaded.Departments),
				"triage_rules", totalRules)
			return nil
		},
	}
}
