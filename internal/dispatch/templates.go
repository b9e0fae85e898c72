package dispatch

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"

	"fastlead_backend/internal/leads/domain"
	"fastlead_backend/internal/tasks"
	"fastlead_backend/platform/config"
)

// Templates renders the outbound message for a dispatch purpose. Overrides
// load from a YAML file keyed by purpose, then channel, with a "default"
// fallback per purpose; the built-in texts apply when no file is configured.
type Templates struct {
	product   string
	templates map[string]map[string]*template.Template
}

type templateData struct {
	Name    string
	Product string
}

var defaultTemplates = map[string]map[string]string{
	tasks.PurposeInitialContact: {
		"default": "Здравствуйте, {{.Name}}! Мы получили вашу заявку в {{.Product}} и свяжемся с вами в ближайшее время.",
		"sms":     "{{.Product}}: здравствуйте, {{.Name}}! Ваша заявка принята, мы скоро свяжемся с вами.",
	},
}

func LoadTemplates(cfg config.TemplateConfig) (*Templates, error) {
	sources := defaultTemplates

	if path := cfg.GetTemplatesPath(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read message templates: %w", err)
		}
		var fromFile map[string]map[string]string
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return nil, fmt.Errorf("parse message templates: %w", err)
		}
		sources = merged(sources, fromFile)
	}

	compiled := make(map[string]map[string]*template.Template, len(sources))
	for purpose, byChannel := range sources {
		compiled[purpose] = make(map[string]*template.Template, len(byChannel))
		for channel, text := range byChannel {
			tmpl, err := template.New(purpose + "/" + channel).Parse(text)
			if err != nil {
				return nil, fmt.Errorf("parse template %s/%s: %w", purpose, channel, err)
			}
			compiled[purpose][channel] = tmpl
		}
	}

	return &Templates{product: cfg.GetProductName(), templates: compiled}, nil
}

// Render produces the message text for a purpose and lead. Channel-specific
// templates win over the purpose default.
func (t *Templates) Render(purpose string, lead domain.Lead) (string, error) {
	byChannel, ok := t.templates[purpose]
	if !ok {
		return "", fmt.Errorf("no templates for purpose %q", purpose)
	}

	tmpl, ok := byChannel[string(lead.Channel)]
	if !ok {
		tmpl, ok = byChannel["default"]
	}
	if !ok {
		return "", fmt.Errorf("no template for purpose %q channel %q", purpose, lead.Channel)
	}

	name := lead.Name
	if name == "" {
		name = "клиент"
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, templateData{Name: name, Product: t.product}); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}

func merged(base, overrides map[string]map[string]string) map[string]map[string]string {
	out := make(map[string]map[string]string, len(base))
	for purpose, byChannel := range base {
		out[purpose] = make(map[string]string, len(byChannel))
		for channel, text := range byChannel {
			out[purpose][channel] = text
		}
	}
	for purpose, byChannel := range overrides {
		if _, ok := out[purpose]; !ok {
			out[purpose] = make(map[string]string, len(byChannel))
		}
		for channel, text := range byChannel {
			out[purpose][channel] = text
		}
	}
	return out
}
