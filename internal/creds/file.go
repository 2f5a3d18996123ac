package creds

import (
	"fmt"
	"os"

	"github.com/mcpland/gitlab-mcp-sub000/pkg/logging"
)

// groupOtherRead covers the permission bits a secret file must not carry.
const groupOtherRead = 0o044

// FileSource reads a credential from a file on disk. In strict mode (the
// default) the file must not be readable by group or other.
type FileSource struct {
	path   string
	strict bool
}

// NewFileSource creates a file source. strict enables the permission check.
func NewFileSource(path string, strict bool) *FileSource {
	return &FileSource{path: path, strict: strict}
}

// Resolve checks the file's permission bits, reads it, and parses the
// content with the same rules as script output.
func (f *FileSource) Resolve() (string, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return "", fmt.Errorf("secret file %s: %w", f.path, err)
	}

	if f.strict && info.Mode().Perm()&groupOtherRead != 0 {
		return "", &FilePermissionError{Path: f.path, Mode: info.Mode().Perm().String()}
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return "", fmt.Errorf("secret file %s: %w", f.path, err)
	}

	secret, err := ParseSecretOutput(data)
	if err != nil {
		return "", fmt.Errorf("secret file %s: %w", f.path, err)
	}

	logging.Debug("CredentialResolver", "Secret file %s resolved a credential", f.path)
	return secret, nil
}
