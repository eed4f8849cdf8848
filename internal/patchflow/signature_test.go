package patchflow

import (
	"encoding/json"
	"testing"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
	"github.com/autoloom/loom/internal/recipe"
)

func testPayload() recipe.PatchPayload {
	return recipe.PatchPayload{
		Patch: []recipe.Op{
			{Kind: recipe.PatchActionsReplace, Key: "submit_btn", Value: recipe.ActionRef{Selector: "#submit-v2", Method: recipe.MethodClick}},
		},
		Reason: "selector drifted",
	}
}

func TestVerifyPatchSignature_ValidSignature(t *testing.T) {
	key, err := crypto.GenerateKey("Test", "test@example.com", "rsa", 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	payload := testPayload()
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	signingKeyRing, err := crypto.NewKeyRing(key)
	if err != nil {
		t.Fatalf("NewKeyRing: %v", err)
	}
	signature, err := signingKeyRing.SignDetached(crypto.NewPlainMessage(payloadJSON))
	if err != nil {
		t.Fatalf("SignDetached: %v", err)
	}
	armoredSig, err := signature.GetArmored()
	if err != nil {
		t.Fatalf("GetArmored: %v", err)
	}

	publicKey, err := key.ToPublic()
	if err != nil {
		t.Fatalf("ToPublic: %v", err)
	}

	if err := VerifyPatchSignature(payload, []byte(armoredSig), publicKey); err != nil {
		t.Fatalf("VerifyPatchSignature: %v", err)
	}
}

func TestVerifyPatchSignature_TamperedPayloadFails(t *testing.T) {
	key, err := crypto.GenerateKey("Test", "test@example.com", "rsa", 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	payload := testPayload()
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	signingKeyRing, err := crypto.NewKeyRing(key)
	if err != nil {
		t.Fatalf("NewKeyRing: %v", err)
	}
	signature, err := signingKeyRing.SignDetached(crypto.NewPlainMessage(payloadJSON))
	if err != nil {
		t.Fatalf("SignDetached: %v", err)
	}
	armoredSig, err := signature.GetArmored()
	if err != nil {
		t.Fatalf("GetArmored: %v", err)
	}
	publicKey, err := key.ToPublic()
	if err != nil {
		t.Fatalf("ToPublic: %v", err)
	}

	tampered := payload
	tampered.Reason = "a different reason"
	if err := VerifyPatchSignature(tampered, []byte(armoredSig), publicKey); err == nil {
		t.Fatal("expected verification to fail against a tampered payload")
	}
}

func TestVerifyPatchSignature_WrongKeyFails(t *testing.T) {
	key, err := crypto.GenerateKey("Test", "test@example.com", "rsa", 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	payload := testPayload()
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	signingKeyRing, err := crypto.NewKeyRing(key)
	if err != nil {
		t.Fatalf("NewKeyRing: %v", err)
	}
	signature, err := signingKeyRing.SignDetached(crypto.NewPlainMessage(payloadJSON))
	if err != nil {
		t.Fatalf("SignDetached: %v", err)
	}
	armoredSig, err := signature.GetArmored()
	if err != nil {
		t.Fatalf("GetArmored: %v", err)
	}

	wrongKey, err := crypto.GenerateKey("Wrong", "wrong@example.com", "rsa", 2048)
	if err != nil {
		t.Fatalf("GenerateKey wrong: %v", err)
	}
	wrongPublicKey, err := wrongKey.ToPublic()
	if err != nil {
		t.Fatalf("ToPublic wrong: %v", err)
	}

	if err := VerifyPatchSignature(payload, []byte(armoredSig), wrongPublicKey); err == nil {
		t.Fatal("expected verification to fail against the wrong key")
	}
}
