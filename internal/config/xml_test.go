package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.xml")

	step := 0.1
	doc := &Document{
		Information: InformationXML{Name: "token1", ID: "uuid-1", Type: "ISL"},
		Cosimulation: CosimulationXML{
			Session:        "sess-a",
			ConnectTimeout: 30,
			StartTime:      0,
			EndTime:        10,
			StepSize:       0.1,
			StepTolerance:  1e-6,
		},
		Variables: VariablesXML{
			Variable: []VariableXML{
				{
					ID: "v1", Name: "Token1W", ConnectID: "c1",
					Causality: "output", StepSize: &step, Store: true, SyncTimeout: -1,
					Real: &ScalarXML{Size: 1, InitialValue: "0.0"},
				},
				{
					ID: "v2", Name: "Token2R", Causality: "input", SyncTimeout: -1,
					Integer: &ScalarXML{Size: 1},
				},
			},
		},
	}

	if err := Save(path, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Information.Name != "token1" || got.Information.ID != "uuid-1" {
		t.Fatalf("Information = %+v, want name/id preserved", got.Information)
	}
	if got.Cosimulation.Session != "sess-a" || got.Cosimulation.EndTime != 10 {
		t.Fatalf("Cosimulation = %+v, want session/endtime preserved", got.Cosimulation)
	}
	if len(got.Variables.Variable) != 2 {
		t.Fatalf("Variables = %d, want 2", len(got.Variables.Variable))
	}
	v1 := got.Variables.Variable[0]
	if v1.Causality != "output" || v1.Real == nil || v1.Real.InitialValue != "0.0" {
		t.Fatalf("Variable[0] = %+v, want output Real with initial 0.0", v1)
	}
	v2 := got.Variables.Variable[1]
	if v2.Causality != "input" || v2.Integer == nil {
		t.Fatalf("Variable[1] = %+v, want input Integer", v2)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.xml")); err == nil {
		t.Fatal("Load on a missing file should fail")
	}
}

func TestLoadMalformedXML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.xml")
	if err := os.WriteFile(path, []byte("<Model><Information"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load on malformed XML should fail")
	}
}
