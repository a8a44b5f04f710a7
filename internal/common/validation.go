package common

import (
	"fmt"
	"slices"
)

// ValidateOutputFormat checks format against the configured formats. An
// empty list allows anything the formatter registry can render.
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 {
		return nil
	}

	if slices.Contains(supportedFormats, format) {
		return nil
	}

	return fmt.Errorf("unsupported output format '%s'. Supported formats: %v",
		format, supportedFormats)
}

// ResolveOutputFormat picks the flag value, then the configured default,
// then json
func ResolveOutputFormat(flagValue, configured string) string {
	switch {
	case flagValue != "":
		return flagValue
	case configured != "":
		return configured
	default:
		return "json"
	}
}
