package segtool_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"segrun/internal/segtool"
)

func mustProfile(t *testing.T, name string) segtool.Profile {
	t.Helper()
	p, err := segtool.Lookup(name)
	if err != nil {
		t.Fatalf("Lookup(%q): %v", name, err)
	}
	return p
}

func TestCommandLineExecutable(t *testing.T) {
	p := mustProfile(t, "cellpose")
	s := segtool.Settings{
		Executable: "/opt/cellpose/bin/cellpose",
		Model:      segtool.Pretrained("cyto"),
		Chan:       1,
		Chan2:      -1,
		Diameter:   30,
	}
	want := []string{
		"/opt/cellpose/bin/cellpose", "--verbose", "--dir", "/tmp/in", "--chan", "1",
		"--diameter", "30", "--pretrained_model", "cyto", "--save_png", "--no_npy",
	}
	if diff := cmp.Diff(want, s.CommandLine(p, "/tmp/in")); diff != "" {
		t.Fatalf("unexpected args (-want +got):\n%s", diff)
	}
}

func TestCommandLinePythonModuleWithExtras(t *testing.T) {
	p := mustProfile(t, "omnipose")
	flow, prob := 0.4, -1.5
	s := segtool.Settings{
		Executable:    `C:\envs\omni\Python.exe`,
		Model:         segtool.Custom("/models/mine"),
		Chan:          0,
		Chan2:         2,
		UseGPU:        true,
		Is3D:          true,
		Anisotropy:    2.5,
		FlowThreshold: &flow,
		ProbThreshold: &prob,
		SaveTIF:       true,
		ExtraArgs:     []string{" --stitch_threshold=0.2 ", ""},
	}
	want := []string{
		`C:\envs\omni\Python.exe`, "-m", "omnipose", "--verbose", "--dir", "d", "--chan", "0",
		"--chan2", "2", "--use_gpu", "--diameter", "0", "--do_3D", "--anisotropy", "2.5",
		"--pretrained_model", "/models/mine", "--flow_threshold", "0.4", "--mask_threshold", "-1.5",
		"--save_tif", "--no_npy", "--stitch_threshold=0.2",
	}
	if diff := cmp.Diff(want, s.CommandLine(p, "d")); diff != "" {
		t.Fatalf("unexpected args (-want +got):\n%s", diff)
	}
}

func TestMaskFileNameAndProfile(t *testing.T) {
	p := mustProfile(t, "cellpose")
	if got := p.MaskFileName(12); got != "12_cp_masks.png" {
		t.Fatalf("MaskFileName = %q", got)
	}
	tif := segtool.Settings{SaveTIF: true}.MaskProfile(p)
	if got := tif.MaskFileName(0); got != "0_cp_masks.tif" {
		t.Fatalf("tif MaskFileName = %q", got)
	}
	if p.DisplayName() != "Cellpose" {
		t.Fatalf("DisplayName = %q", p.DisplayName())
	}
}

func TestLogFileUnderHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	p := mustProfile(t, "cellpose")
	got, err := p.LogFile()
	if err != nil {
		t.Fatalf("LogFile: %v", err)
	}
	if got != filepath.Join(home, ".cellpose", "run.log") {
		t.Fatalf("LogFile = %q", got)
	}
}

func TestValidate(t *testing.T) {
	p := mustProfile(t, "cellpose")
	ok := segtool.Settings{Executable: "cellpose", Model: segtool.Pretrained("nuclei"), Chan2: -1}
	if err := ok.Validate(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := ok
	bad.Model = segtool.Pretrained("bact_phase_omni")
	if err := bad.Validate(p); err == nil || !strings.Contains(err.Error(), "unknown cellpose model") {
		t.Fatalf("expected unknown model error, got %v", err)
	}
	if err := (segtool.Settings{Executable: "x", Model: segtool.ParseModel("custom", "")}).Validate(p); err == nil {
		t.Fatal("expected error for empty custom model path")
	}
	if _, err := segtool.Lookup("stardist"); err == nil {
		t.Fatal("expected unknown tool error")
	}
}

func TestRunsAsModule(t *testing.T) {
	cases := map[string]bool{
		"/opt/conda/envs/cp/bin/python3":  true,
		`C:\Miniconda\envs\cp\python.exe`: true,
		"Python3.11":                      true,
		"/usr/local/bin/cellpose":         false,
		"/home/me/python-tools/omnipose":  false,
		"":                                false,
	}
	for exe, want := range cases {
		if got := segtool.RunsAsModule(exe); got != want {
			t.Errorf("RunsAsModule(%q) = %v, want %v", exe, got, want)
		}
	}
}
