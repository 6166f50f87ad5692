package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/species-extractor/constants"
)

// AllowedExt reports whether a file with this extension is a candidate document.
func AllowedExt(ext string) bool {
	return constants.IsPDFExt(ext)
}

// IsHidden reports dotfiles and Office lock files ("~$report.pdf").
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$")
}
