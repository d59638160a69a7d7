package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSettingsMissingFileReturnsDefaults(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "isl_api.ini"))
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	want := DefaultSettings()
	if s != want {
		t.Fatalf("LoadSettings on missing file = %+v, want defaults %+v", s, want)
	}
}

func TestLoadSettingsParsesCommonGroup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "isl_api.ini")
	content := "[Common]\n" +
		"MaxSHMStringSize=2048\n" +
		"MaxNbReaders=32\n" +
		"StepTolerance=0.001\n" +
		"ISLCompatible=true\n" +
		"ZipCmd=zip -r\n" +
		"\n" +
		"[Other]\n" +
		"MaxNbReaders=999\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.MaxSHMStringSize != 2048 {
		t.Errorf("MaxSHMStringSize = %d, want 2048", s.MaxSHMStringSize)
	}
	if s.MaxNbReaders != 32 {
		t.Errorf("MaxNbReaders = %d, want 32 (value from [Other] must not leak in)", s.MaxNbReaders)
	}
	if s.StepTolerance != 0.001 {
		t.Errorf("StepTolerance = %v, want 0.001", s.StepTolerance)
	}
	if !s.ISLCompatible {
		t.Error("ISLCompatible = false, want true")
	}
	if s.ZipCmd != "zip -r" {
		t.Errorf("ZipCmd = %q, want %q", s.ZipCmd, "zip -r")
	}
	if s.MaxFIFODepth != 1024 {
		t.Errorf("MaxFIFODepth = %d, want default 1024 (not present in file)", s.MaxFIFODepth)
	}
}

func TestSaveSettingsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "isl_api.ini")
	s := DefaultSettings()
	s.MaxNbReaders = 8
	s.IsGlobalIPC = true

	if err := SaveSettings(path, s); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	got, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if got != s {
		t.Fatalf("round trip = %+v, want %+v", got, s)
	}
}
