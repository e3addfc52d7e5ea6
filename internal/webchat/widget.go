package webchat

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/wolfman30/facility-lead-chat/internal/brand"
)

//go:embed assets/widget.js.tmpl
var assets embed.FS

var widgetTemplate = template.Must(template.New("widget.js.tmpl").Funcs(template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
}).ParseFS(assets, "assets/widget.js.tmpl"))

type widgetConfig struct {
	ChatURL string      `json:"chatURL"`
	Brand   widgetBrand `json:"brand"`
}

type widgetBrand struct {
	Name       string        `json:"name"`
	Slogan     string        `json:"slogan"`
	Phone      string        `json:"phone"`
	Email      string        `json:"email"`
	BookingURL string        `json:"bookingURL"`
	Actions    widgetActions `json:"actions"`
}

type widgetActions struct {
	Book  string `json:"book"`
	Call  string `json:"call"`
	Email string `json:"email"`
}

// RenderWidget renders the embeddable widget script for a brand. With an
// empty baseURL the script posts to the origin it was loaded from.
func RenderWidget(profile *brand.Profile, baseURL string) ([]byte, error) {
	if profile == nil {
		profile = brand.Default()
	}
	cfg := widgetConfig{
		Brand: widgetBrand{
			Name:       profile.Name,
			Slogan:     profile.Slogan,
			Phone:      profile.Phone,
			Email:      profile.Email,
			BookingURL: profile.BookingURL,
			Actions: widgetActions{
				Book:  profile.Actions.Book,
				Call:  profile.Actions.Call,
				Email: profile.Actions.Email,
			},
		},
	}
	if base := strings.TrimRight(baseURL, "/"); base != "" {
		cfg.ChatURL = base + "/api/chat"
	}

	var buf bytes.Buffer
	if err := widgetTemplate.Execute(&buf, cfg); err != nil {
		return nil, fmt.Errorf("webchat: render widget: %w", err)
	}
	return buf.Bytes(), nil
}
