package recipe

import (
	"archive/zip"
	"bytes"
	"testing"
)

func TestExportImport_RoundTrips(t *testing.T) {
	r := baseRecipe()

	var buf bytes.Buffer
	if err := Export(&buf, r); err != nil {
		t.Fatalf("Export: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}

	imported, err := Import(zr, r.Domain, r.Flow, r.Version)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if imported.Actions["submit_btn"].Preferred.Selector != "#submit" {
		t.Fatalf("unexpected imported actions: %+v", imported.Actions)
	}
	if len(imported.Workflow.Steps) != len(r.Workflow.Steps) {
		t.Fatalf("unexpected imported workflow: %+v", imported.Workflow)
	}
}

func TestImport_InfersKindFromContentWhenFilenameAmbiguous(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	write := func(name, content string) {
		f, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("Write %s: %v", name, err)
		}
	}
	write("example.com-v1/one.json", `{"id":"checkout","steps":[{"id":"open","op":"goto","args":{"url":"https://example.com"}}]}`)
	write("example.com-v1/two.json", `{"submit_btn":{"instruction":"click submit","preferred":{"selector":"#submit","method":"click"}}}`)
	write("example.com-v1/three.json", `{"submit_btn":{"primary":"#submit","fallbacks":["#submit2"],"strategy":"css"}}`)
	write("example.com-v1/four.json", `{}`)
	if err := zw.Close(); err != nil {
		t.Fatalf("zw.Close: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}

	r, err := Import(zr, "example.com", "checkout", "v1")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if r.Workflow.ID != "checkout" {
		t.Fatalf("expected workflow inferred from steps field, got %+v", r.Workflow)
	}
	if r.Actions["submit_btn"].Preferred.Selector != "#submit" {
		t.Fatalf("expected actions inferred from instruction field, got %+v", r.Actions)
	}
	if r.Selectors["submit_btn"].Primary != "#submit" {
		t.Fatalf("expected selectors inferred from primary+fallbacks, got %+v", r.Selectors)
	}
}
