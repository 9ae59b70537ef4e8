package segtool

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Profile describes one wrapped segmentation tool.
type Profile struct {
	// Name is the python module and executable name.
	Name string
	// MaskSuffix sits between the frame index and "_masks" in output names.
	MaskSuffix string
	// MaskExt is the extension of mask files the tool writes.
	MaskExt string
	// ProbFlag is the probability threshold flag for this tool.
	ProbFlag string
	// Only2D tools reject inputs with several Z slices.
	Only2D           bool
	PretrainedModels []string
	DefaultModel     string
	HelpURL          string
}

var profiles = map[string]Profile{
	"cellpose": {
		Name:             "cellpose",
		MaskSuffix:       "cp",
		MaskExt:          "png",
		ProbFlag:         "--cellprob_threshold",
		PretrainedModels: []string{"cyto", "cyto2", "cyto3", "nuclei", "tissuenet", "livecell"},
		DefaultModel:     "cyto",
		HelpURL:          "https://github.com/MouseLand/cellpose#run-cellpose-without-local-python-installation",
	},
	"omnipose": {
		Name:             "omnipose",
		MaskSuffix:       "cp",
		MaskExt:          "png",
		ProbFlag:         "--mask_threshold",
		Only2D:           true,
		PretrainedModels: []string{"bact_phase_omni", "bact_fluor_omni", "cyto2_omni", "worm_omni", "plant_omni"},
		DefaultModel:     "bact_phase_omni",
		HelpURL:          "https://omnipose.readthedocs.io/installation.html",
	},
}

// Lookup returns the profile registered under name.
func Lookup(name string) (Profile, error) {
	p, ok := profiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, fmt.Errorf("unknown segmentation tool %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return p, nil
}

// Names lists registered tool names in sorted order.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DisplayName returns the tool name as shown to users, e.g. "Cellpose".
func (p Profile) DisplayName() string {
	return cases.Title(language.English).String(p.Name)
}

// WithMaskExt returns a copy of p reading masks with the given extension.
func (p Profile) WithMaskExt(ext string) Profile {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext != "" {
		p.MaskExt = ext
	}
	return p
}

// MaskFileName returns the output name the tool writes for a frame index.
func (p Profile) MaskFileName(local int) string {
	return p.MaskFileNameFor(strconv.Itoa(local))
}

// MaskFileNameFor returns the output name the tool writes for an input file
// stem.
func (p Profile) MaskFileNameFor(stem string) string {
	return fmt.Sprintf("%s_%s_masks.%s", stem, p.MaskSuffix, p.MaskExt)
}

// LogFile returns the per-user log the tool appends to during a run.
func (p Profile) LogFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, "."+p.Name, "run.log"), nil
}
