package extract

import "unicode/utf8"

type plainTextExtractor struct{}

func init() {
	Register("txt", func() Extractor { return &plainTextExtractor{} })
	Register("text", func() Extractor { return &plainTextExtractor{} })
}

func (e *plainTextExtractor) Extract(data []byte) (string, error) {
	if !utf8.Valid(data) {
		// Strip invalid sequences rather than refusing the file.
		return string([]rune(string(data))), nil
	}
	return string(data), nil
}
