// Package theme renders a persona's colour pair into the page stylesheet.
package theme

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/zhouzirui/beacon/internal/model/persona"
)

// Opacity applied to the background colour for surfaces and borders.
const (
	SurfaceAlpha = 0.3
	BorderAlpha  = 0.5
)

// HexToRGBA converts "#rrggbb" to a CSS rgba() value.
func HexToRGBA(hex string, alpha float64) (string, error) {
	raw := strings.TrimPrefix(hex, "#")
	if len(raw) != 6 {
		return "", fmt.Errorf("theme: invalid colour %q", hex)
	}
	v, err := strconv.ParseUint(raw, 16, 32)
	if err != nil {
		return "", fmt.Errorf("theme: invalid colour %q: %w", hex, err)
	}
	r, g, b := v>>16&0xff, v>>8&0xff, v&0xff
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", r, g, b, strconv.FormatFloat(alpha, 'f', -1, 64)), nil
}

var stylesheet = template.Must(template.New("theme.css").Parse(`body, .app {
  background: linear-gradient(80deg, {{.Surface}}, black);
  color: {{.Text}} !important;
}

button, textarea, input, select {
  border: 2px solid;
  border-image: linear-gradient(135deg, {{.Border}}, black) 1;
  background: linear-gradient(135deg, black, {{.Surface}});
  color: {{.Text}} !important;
  border-radius: 6px;
  font-weight: bold;
}

button:hover {
  background: linear-gradient(135deg, {{.Background}}, black);
  color: #ffffff !important;
}

.message.assistant, .message.user {
  border: 2px solid {{.Border}} !important;
  background: linear-gradient(135deg, {{.Surface}}, black);
  color: {{.Text}} !important;
}
`))

// CSS returns the stylesheet for t.
func CSS(t persona.Theme) (string, error) {
	surface, err := HexToRGBA(t.Background, SurfaceAlpha)
	if err != nil {
		return "", err
	}
	border, err := HexToRGBA(t.Background, BorderAlpha)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = stylesheet.Execute(&buf, struct {
		Background, Text, Surface, Border string
	}{t.Background, t.Text, surface, border})
	if err != nil {
		return "", fmt.Errorf("theme: render: %w", err)
	}
	return buf.String(), nil
}
