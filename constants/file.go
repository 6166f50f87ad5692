package constants

import "strings"

// ExtPDF is the only document extension read from the input folder.
const ExtPDF = ".pdf"

// IsPDFExt reports whether ext, with or without the leading dot, names a PDF.
func IsPDFExt(ext string) bool {
	return strings.EqualFold("."+strings.TrimPrefix(ext, "."), ExtPDF)
}
