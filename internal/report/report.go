// Package report renders smoke run results.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	smokeerrors "github.com/savaki/apismoke/internal/errors"
	"github.com/savaki/apismoke/internal/smoke"
	"gopkg.in/yaml.v3"
)

// Format selects an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// PreviewLimit caps the payload preview per check in text output, in characters.
const PreviewLimit = 900

var separator = strings.Repeat("-", 60)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", smokeerrors.ErrUnsupportedFormat, s)
	}
}

// Write renders report to w.
func Write(w io.Writer, report *smoke.Report, format Format) error {
	switch format {
	case FormatText, "":
		return writeText(w, report)

	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetEscapeHTML(false)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)

	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(report); err != nil {
			return fmt.Errorf("failed to encode yaml report: %w", err)
		}
		return encoder.Close()

	default:
		return fmt.Errorf("%w: %q", smokeerrors.ErrUnsupportedFormat, format)
	}
}

func writeText(w io.Writer, report *smoke.Report) error {
	var buf bytes.Buffer
	for _, check := range report.Checks {
		fmt.Fprintf(&buf, "%s -> HTTP %d\n", check.Route, check.Status)
		if check.Error != "" {
			fmt.Fprintf(&buf, "error: %s\n", check.Error)
		} else {
			buf.WriteString(Preview(check.Payload, PreviewLimit))
			buf.WriteByte('\n')
		}
		buf.WriteString(separator)
		buf.WriteByte('\n')

		for _, failure := range check.Failures {
			buf.WriteString(failure)
			buf.WriteByte('\n')
		}
	}

	if report.Passed {
		fmt.Fprintf(&buf, "PASS: %d checks against %s (run %s)\n", len(report.Checks), report.BaseURL, report.RunID)
	} else {
		fmt.Fprintf(&buf, "FAIL: %d of %d checks failed against %s (run %s)\n", report.Failures, len(report.Checks), report.BaseURL, report.RunID)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// Preview encodes payload as JSON with ", " and ": " separators, keeping
// non-ASCII and HTML characters literal, and truncates it to limit characters.
func Preview(payload any, limit int) string {
	var buf bytes.Buffer
	if err := writeSpaced(&buf, payload); err != nil {
		return fmt.Sprintf("%v", payload)
	}

	text := buf.String()
	if runes := []rune(text); limit > 0 && len(runes) > limit {
		return string(runes[:limit])
	}
	return text
}

// writeSpaced writes v as JSON with a space after every item and key separator.
// Object keys are sorted.
func writeSpaced(buf *bytes.Buffer, v any) error {
	switch value := v.(type) {
	case map[string]any:
		buf.WriteByte('{')
		for i, key := range slices.Sorted(maps.Keys(value)) {
			if i > 0 {
				buf.WriteString(", ")
			}
			if err := writeScalar(buf, key); err != nil {
				return err
			}
			buf.WriteString(": ")
			if err := writeSpaced(buf, value[key]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil

	case []any:
		buf.WriteByte('[')
		for i, item := range value {
			if i > 0 {
				buf.WriteString(", ")
			}
			if err := writeSpaced(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil

	default:
		return writeScalar(buf, value)
	}
}

func writeScalar(buf *bytes.Buffer, v any) error {
	var scratch bytes.Buffer
	encoder := json.NewEncoder(&scratch)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(scratch.Bytes(), []byte("\n")))
	return nil
}
