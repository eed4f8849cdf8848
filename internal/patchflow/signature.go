// Package patchflow implements the Patch Workflow: classifying a
// PatchPayload as minor or major, gating major patches behind a
// Checkpoint Handler, and applying an accepted patch to produce a new,
// version-bumped Recipe.
package patchflow

import (
	"encoding/json"
	"fmt"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
	"github.com/autoloom/loom/internal/recipe"
)

// VerifyPatchSignature checks an optional detached PGP signature over a
// PatchPayload's canonical JSON encoding against key. A PatchPlanner that
// signs its responses lets a caller reject a tampered or spoofed patch
// before it ever reaches the checkpoint gate.
//
// signatureData may be armored or binary, mirroring the teacher's
// tarball-signature verification; key is the operator's configured
// trusted public key for the PatchPlanner in use.
func VerifyPatchSignature(payload recipe.PatchPayload, signatureData []byte, key *crypto.Key) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal patch payload for signature verification: %w", err)
	}

	signature, err := crypto.NewPGPSignatureFromArmored(string(signatureData))
	if err != nil {
		signature = crypto.NewPGPSignature(signatureData)
	}

	keyRing, err := crypto.NewKeyRing(key)
	if err != nil {
		return fmt.Errorf("failed to create keyring: %w", err)
	}

	message := crypto.NewPlainMessage(payloadJSON)
	if err := keyRing.VerifyDetached(message, signature, 0); err != nil {
		return fmt.Errorf("patch signature verification failed: %w", err)
	}
	return nil
}
