package deps

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// CheckDirectoryAccess verifies that the directory exists and is
// readable and writable.
func CheckDirectoryAccess(name, path string) Status {
	status := Status{Name: name, Command: path, Description: "Directory access"}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			status.Detail = "does not exist"
			return status
		}
		status.Detail = fmt.Sprintf("stat: %v", err)
		return status
	}
	if !info.IsDir() {
		status.Detail = "is not a directory"
		return status
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		status.Detail = fmt.Sprintf("insufficient permissions: %v", err)
		return status
	}
	status.Available = true
	status.Detail = "read/write ok"
	return status
}
