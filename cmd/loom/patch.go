package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
	"github.com/spf13/cobra"

	"github.com/autoloom/loom/internal/checkpoint"
	"github.com/autoloom/loom/internal/config"
	"github.com/autoloom/loom/internal/patchflow"
	"github.com/autoloom/loom/internal/recipe"
)

var patchCmd = &cobra.Command{
	Use:   "patch",
	Short: "Apply a PatchPlanner-authored patch to a recipe",
}

var (
	patchSignatureFile string
	patchKeyName       string
)

var patchApplyCmd = &cobra.Command{
	Use:   "apply <domain> <flow> <version> <patch-file>",
	Short: "Classify, optionally verify, and apply a patch, persisting a version-bumped recipe",
	Long: `apply reads a PatchPayload as JSON from <patch-file>, loads the
current <domain>/<flow>/<version> recipe, and runs it through the Patch
Workflow: a major-classified patch is gated behind a GO/NOT-GO checkpoint
before it is applied. On success the new version is written alongside the
original; the original is never modified or removed.

If --signature is given, the patch is verified against the trusted public
key named --key (looked up under $LOOM_HOME/cache/keys) before
classification; a failed verification aborts without touching disk.`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, flow, version, patchFile := args[0], args[1], args[2], args[3]

		cfg, err := config.DefaultConfig()
		if err != nil {
			return err
		}

		current, err := recipe.Load(cfg.RecipesDir, domain, flow, version)
		if err != nil {
			return fmt.Errorf("loading recipe: %w", err)
		}

		raw, err := os.ReadFile(patchFile)
		if err != nil {
			return fmt.Errorf("reading patch file: %w", err)
		}
		var payload recipe.PatchPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("parsing patch payload: %w", err)
		}

		if patchSignatureFile != "" {
			if err := verifyPatchAgainstTrustedKey(cfg, payload, patchSignatureFile, patchKeyName); err != nil {
				return err
			}
		}

		handler := checkpoint.NewCLI(os.Stdin, os.Stderr)
		store := recipe.DirWriter{RecipesRoot: cfg.RecipesDir}
		result, err := patchflow.ApplyAndVersionUp(globalCtx, current, payload, handler, store)
		if err != nil {
			return fmt.Errorf("applying patch: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "applied %s patch: %s/%s %s -> %s\n",
			result.Class, domain, flow, version, result.Recipe.Version)
		return nil
	},
}

func verifyPatchAgainstTrustedKey(cfg *config.Config, payload recipe.PatchPayload, signatureFile, keyName string) error {
	if keyName == "" {
		return fmt.Errorf("--key is required when --signature is given")
	}
	sigData, err := os.ReadFile(signatureFile)
	if err != nil {
		return fmt.Errorf("reading signature file: %w", err)
	}
	keyData, err := os.ReadFile(filepath.Join(cfg.KeyCacheDir, keyName))
	if err != nil {
		return fmt.Errorf("loading trusted key %q: %w", keyName, err)
	}
	key, err := crypto.NewKeyFromArmored(string(keyData))
	if err != nil {
		return fmt.Errorf("parsing trusted key %q: %w", keyName, err)
	}
	if err := patchflow.VerifyPatchSignature(payload, sigData, key); err != nil {
		return err
	}
	return nil
}

func init() {
	patchApplyCmd.Flags().StringVar(&patchSignatureFile, "signature", "", "path to a detached PGP signature over the patch file")
	patchApplyCmd.Flags().StringVar(&patchKeyName, "key", "", "trusted public key filename under $LOOM_HOME/cache/keys")
	patchCmd.AddCommand(patchApplyCmd)
}
