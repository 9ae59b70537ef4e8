package deps

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// moduleCheckTimeout bounds the import check; importing torch-backed tools
// is slow on a cold cache.
const moduleCheckTimeout = 60 * time.Second

// CheckPythonModule verifies that interpreter can import module.
func CheckPythonModule(ctx context.Context, interpreter, module string) Status {
	status := Status{
		Name:        "Python module " + module,
		Command:     strings.TrimSpace(interpreter),
		Description: "Imported by the interpreter when running " + module,
	}
	if status.Command == "" {
		status.Detail = "interpreter not configured"
		return status
	}

	checkCtx, cancel := context.WithTimeout(ctx, moduleCheckTimeout)
	defer cancel()

	script := fmt.Sprintf("import %s, sys; sys.stdout.write(getattr(%s, '__version__', ''))", module, module)
	out, err := exec.CommandContext(checkCtx, status.Command, "-c", script).Output()
	if err != nil {
		var stderr string
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr = lastLine(string(exitErr.Stderr))
		}
		if stderr == "" {
			stderr = err.Error()
		}
		status.Detail = fmt.Sprintf("cannot import %s (%s)", module, stderr)
		return status
	}
	status.Available = true
	if version := strings.TrimSpace(string(out)); version != "" {
		status.Detail = "version " + version
	}
	return status
}

func lastLine(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
