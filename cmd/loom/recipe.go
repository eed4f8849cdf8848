package main

import (
	"archive/zip"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/autoloom/loom/internal/config"
	"github.com/autoloom/loom/internal/recipe"
)

var recipeCmd = &cobra.Command{
	Use:   "recipe",
	Short: "Inspect and manage recipes on disk",
}

var recipeValidateCmd = &cobra.Command{
	Use:   "validate <domain> <flow> <version>",
	Short: "Load and structurally validate a recipe's five-file directory",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.DefaultConfig()
		if err != nil {
			return err
		}
		_, err = recipe.Load(cfg.RecipesDir, args[0], args[1], args[2])
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
			exitWithCode(ExitValidationFailed)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "valid: %s/%s/%s\n", args[0], args[1], args[2])
		return nil
	},
}

var recipeImportCmd = &cobra.Command{
	Use:   "import <zip-file> <domain> <flow> <version>",
	Short: "Import a recipe archive into the recipes directory",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		zr, err := zip.OpenReader(args[0])
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		defer zr.Close()

		r, err := recipe.Import(&zr.Reader, args[1], args[2], args[3])
		if err != nil {
			return fmt.Errorf("importing recipe: %w", err)
		}

		cfg, err := config.DefaultConfig()
		if err != nil {
			return err
		}
		w := recipe.DirWriter{RecipesRoot: cfg.RecipesDir}
		if err := w.Save(r); err != nil {
			return fmt.Errorf("saving recipe: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported: %s/%s/%s\n", r.Domain, r.Flow, r.Version)
		return nil
	},
}

var recipeExportCmd = &cobra.Command{
	Use:   "export <domain> <flow> <version> <zip-file>",
	Short: "Export a recipe's five files into a single archive",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.DefaultConfig()
		if err != nil {
			return err
		}
		r, err := recipe.Load(cfg.RecipesDir, args[0], args[1], args[2])
		if err != nil {
			return fmt.Errorf("loading recipe: %w", err)
		}

		out, err := os.Create(args[3])
		if err != nil {
			return fmt.Errorf("creating archive: %w", err)
		}
		defer out.Close()

		if err := recipe.Export(out, r); err != nil {
			return fmt.Errorf("exporting recipe: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported: %s\n", args[3])
		return nil
	},
}

func init() {
	recipeCmd.AddCommand(recipeValidateCmd)
	recipeCmd.AddCommand(recipeImportCmd)
	recipeCmd.AddCommand(recipeExportCmd)
}
