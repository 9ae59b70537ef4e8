package segtool

import (
	"errors"
	"path/filepath"
	"strconv"
	"strings"
)

// Settings are the per-run tool parameters.
type Settings struct {
	Executable string
	Model      Model
	Chan       int
	// Chan2 is the optional second channel; negative disables it.
	Chan2    int
	Diameter float64
	UseGPU   bool
	Is3D     bool
	// Anisotropy is the Z to XY sampling ratio, used when Is3D is set.
	Anisotropy       float64
	FlowThreshold    *float64
	ProbThreshold    *float64
	SaveTIF          bool
	SimplifyContours bool
	ExtraArgs        []string
}

// Validate checks the settings against the profile.
func (s Settings) Validate(p Profile) error {
	if strings.TrimSpace(s.Executable) == "" {
		return errors.New("tool executable path is empty")
	}
	if s.Chan < 0 {
		return errors.New("channel must be >= 0")
	}
	if s.Diameter < 0 {
		return errors.New("diameter must be >= 0")
	}
	return s.Model.Validate(p)
}

// CommandLine builds the argument vector that segments every image in dir.
// When the executable is a python interpreter the tool is run as a module.
func (s Settings) CommandLine(p Profile, dir string) []string {
	cmd := []string{s.Executable}
	if RunsAsModule(s.Executable) {
		cmd = append(cmd, "-m", p.Name)
	}

	cmd = append(cmd, "--verbose", "--dir", dir, "--chan", strconv.Itoa(s.Chan))
	if s.Chan2 >= 0 {
		cmd = append(cmd, "--chan2", strconv.Itoa(s.Chan2))
	}
	if s.UseGPU {
		cmd = append(cmd, "--use_gpu")
	}
	diameter := "0"
	if s.Diameter > 0 {
		diameter = formatFloat(s.Diameter)
	}
	cmd = append(cmd, "--diameter", diameter)
	if s.Is3D {
		cmd = append(cmd, "--do_3D")
		if s.Anisotropy > 0 {
			cmd = append(cmd, "--anisotropy", formatFloat(s.Anisotropy))
		}
	}
	cmd = append(cmd, "--pretrained_model", s.Model.Arg())
	if s.FlowThreshold != nil {
		cmd = append(cmd, "--flow_threshold", formatFloat(*s.FlowThreshold))
	}
	if s.ProbThreshold != nil && p.ProbFlag != "" {
		cmd = append(cmd, p.ProbFlag, formatFloat(*s.ProbThreshold))
	}
	if s.SaveTIF {
		cmd = append(cmd, "--save_tif")
	} else {
		cmd = append(cmd, "--save_png")
	}
	cmd = append(cmd, "--no_npy")
	for _, extra := range s.ExtraArgs {
		if extra = strings.TrimSpace(extra); extra != "" {
			cmd = append(cmd, extra)
		}
	}
	return cmd
}

// RunsAsModule reports whether executable is a python interpreter, in which
// case the tool is started with -m.
func RunsAsModule(executable string) bool {
	base := filepath.Base(strings.ReplaceAll(executable, "\\", "/"))
	return strings.HasPrefix(strings.ToLower(base), "python")
}

// MaskProfile returns the profile adjusted to the mask format the settings
// ask the tool to write.
func (s Settings) MaskProfile(p Profile) Profile {
	if s.SaveTIF {
		return p.WithMaskExt("tif")
	}
	return p.WithMaskExt("png")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
