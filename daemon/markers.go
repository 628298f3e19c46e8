package daemon

import (
	"os"

	"coinex-trader/interfaces"
)

// FileMarkers implements the marker store on plain files. File existence is
// the whole protocol: good enough for a single-process daemon, no
// distributed coordination intended.
type FileMarkers struct{}

var _ interfaces.Markers = FileMarkers{}

// Exists reports whether the marker file is present.
func (FileMarkers) Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// Create writes the marker file.
func (FileMarkers) Create(name, contents string) error {
	return os.WriteFile(name, []byte(contents), 0o644)
}

// Remove deletes the marker file; a missing file is not an error.
func (FileMarkers) Remove(name string) error {
	err := os.Remove(name)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
