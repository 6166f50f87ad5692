//go:build !gosseract

package ocr

// newGosseract is unavailable unless built with -tags gosseract.
func newGosseract(Config) (ImageRecognizer, error) {
	return nil, ErrEngineUnavailable
}
