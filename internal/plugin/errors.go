package plugin

import (
	"errors"
	"fmt"
)

// ManifestError reports an unreadable or schema-invalid manifest.
type ManifestError struct {
	Path    string
	Message string
}

func (e *ManifestError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("manifest: %s", e.Message)
	}
	return fmt.Sprintf("manifest %s: %s", e.Path, e.Message)
}

// IsManifestError reports whether err is a ManifestError.
func IsManifestError(err error) bool {
	var me *ManifestError
	return errors.As(err, &me)
}

// ResolutionError reports a failure to compute the required plugin set.
// Resolution failures abort the session before any provider call.
type ResolutionError struct {
	Plugin  string
	Message string
}

func (e *ResolutionError) Error() string {
	if e.Plugin == "" {
		return fmt.Sprintf("plugin resolution: %s", e.Message)
	}
	return fmt.Sprintf("plugin resolution: %s: %s", e.Plugin, e.Message)
}

// IsResolutionError reports whether err is a ResolutionError.
func IsResolutionError(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}
