// Package tokenfile reads the InfluxDB admin credential from a file. The file
// holds the bare token, optionally followed by a newline. This is a leaf
// package so config can resolve the credential without importing the client.
package tokenfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// FilePerms is the expected mode: owner-only read/write.
const FilePerms = 0o600

// Sentinel errors.
var (
	ErrNotFound = errors.New("tokenfile: file does not exist")
	ErrEmpty    = errors.New("tokenfile: file is empty")
	ErrMultiple = errors.New("tokenfile: file holds more than one line")
)

// Result is a loaded credential plus what was noticed about its file.
type Result struct {
	Token string
	// Insecure is set when group or other users can read the file.
	Insecure bool
	Mode     fs.FileMode
}

// Load reads the token stored at path. Never logs token values.
func Load(path string) (Result, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Result{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	if err != nil {
		return Result{}, fmt.Errorf("tokenfile: reading %s: %w", path, err)
	}

	if info.IsDir() {
		return Result{}, fmt.Errorf("tokenfile: %s is a directory", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("tokenfile: reading %s: %w", path, err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return Result{}, fmt.Errorf("%w: %s", ErrEmpty, path)
	}

	if strings.ContainsAny(token, "\r\n") {
		return Result{}, fmt.Errorf("%w: %s", ErrMultiple, path)
	}

	mode := info.Mode().Perm()

	return Result{
		Token:    token,
		Insecure: mode&0o077 != 0,
		Mode:     mode,
	}, nil
}
