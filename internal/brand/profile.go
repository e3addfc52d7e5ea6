// Package brand holds the business profile the chat speaks for: names,
// contact details, answer options and the message templates.
package brand

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Template names used by the intake flow.
const (
	TemplateGreeting         = "greeting"
	TemplateAskFacility      = "ask_facility"
	TemplateAskLocation      = "ask_location"
	TemplateAskFrequency     = "ask_frequency"
	TemplateAskName          = "ask_name"
	TemplateAskEmail         = "ask_email"
	TemplateAskPhone         = "ask_phone"
	TemplateComplete         = "complete"
	TemplateFollowUp         = "follow_up"
	TemplateRestart          = "restart"
	TemplateEmptyAnswer      = "empty_answer"
	TemplateInvalidLocation  = "invalid_location"
	TemplateInvalidName      = "invalid_name"
	TemplateInvalidEmail     = "invalid_email"
	TemplateInvalidPhone     = "invalid_phone"
	TemplateCallUs           = "call_us"
	TemplateQuestionFallback = "question_fallback"
	TemplateVisitorSMS       = "visitor_sms"
	TemplatePushTitle        = "push_title"
	TemplatePushBody         = "push_body"
	TemplateEmailSubject     = "email_subject"
)

// Action quick replies. The widget handles these client-side instead of
// posting them back as answers.
type Actions struct {
	Book  string `yaml:"book" json:"book"`
	Call  string `yaml:"call" json:"call"`
	Email string `yaml:"email" json:"email"`
}

// Profile describes the business behind the widget.
type Profile struct {
	Name              string            `yaml:"name" json:"name"`
	Slogan            string            `yaml:"slogan" json:"slogan"`
	AssistantName     string            `yaml:"assistant_name" json:"assistant_name"`
	BookingURL        string            `yaml:"booking_url" json:"booking_url"`
	Phone             string            `yaml:"phone" json:"phone"`
	Email             string            `yaml:"email" json:"email"`
	ServiceArea       string            `yaml:"service_area" json:"service_area"`
	Services          []string          `yaml:"services" json:"services"`
	FacilityTypes     []string          `yaml:"facility_types" json:"facility_types"`
	Frequencies       []string          `yaml:"frequencies" json:"frequencies"`
	Actions           Actions           `yaml:"actions" json:"actions"`
	Templates         map[string]string `yaml:"templates" json:"-"`
	MaxInvalidAnswers int               `yaml:"max_invalid_answers" json:"-"`

	once     sync.Once
	compiled *template.Template
	compErr  error
}

// TemplateData is what message templates render against.
type TemplateData struct {
	Brand        *Profile
	FirstName    string
	Name         string
	FacilityType string
	City         string
	ZIP          string
	Location     string
	Frequency    string
	Email        string
	Phone        string
	PageURL      string
}

// Default returns the built-in commercial cleaning profile.
func Default() *Profile {
	return &Profile{
		Name:          "Pure Aura Cleaning Solutions",
		Slogan:        "Elevate Your Environment",
		AssistantName: "Aura",
		BookingURL:    "https://pureauracleaningsolutions.com/book-now/",
		Phone:         "740-284-8500",
		Email:         "management@pureauracleaningsolutions.com",
		ServiceArea:   "Eastern Ohio and the Ohio Valley",
		Services: []string{
			"Office cleaning",
			"Medical office cleaning",
			"Bank and branch cleaning",
			"Property management common areas",
			"Floor care",
		},
		FacilityTypes: []string{"Office", "Medical Office", "Bank", "Property Management", "Other"},
		Frequencies:   []string{"Daily", "2-3x per week", "Weekly", "Bi-weekly", "Monthly", "One-time"},
		Actions: Actions{
			Book:  "Book Walkthrough",
			Call:  "Call Now",
			Email: "Email Me",
		},
		Templates:         defaultTemplates(),
		MaxInvalidAnswers: 3,
	}
}

func defaultTemplates() map[string]string {
	return map[string]string{
		TemplateGreeting:         "Hi! I'm {{.Brand.AssistantName}} with {{.Brand.Name}}.\nWhat type of facility is this: {{join .Brand.FacilityTypes}}?",
		TemplateAskFacility:      "What type of facility is this: {{join .Brand.FacilityTypes}}?",
		TemplateAskLocation:      "Thanks! What city and ZIP is the facility in?",
		TemplateAskFrequency:     "Got it{{if .City}}, {{.City}}{{end}}. How often would you like cleaning?",
		TemplateAskName:          "Perfect. What's your name?",
		TemplateAskEmail:         "Nice to meet you, {{.FirstName}}. What's the best email to send your quote to?",
		TemplateAskPhone:         "And the best phone number to reach you?",
		TemplateComplete:         "Thank you, {{.FirstName}}! A {{.Brand.Name}} specialist will reach out shortly about your {{lower .FacilityType}} in {{.Location}}.\nPick a time for your free walkthrough here: {{.Brand.BookingURL}}",
		TemplateFollowUp:         "Your details are with our team, {{.FirstName}}. You can book a walkthrough at {{.Brand.BookingURL}} or call us at {{.Brand.Phone}}.",
		TemplateRestart:          "No problem, let's start over.",
		TemplateEmptyAnswer:      "Sorry, I didn't catch that.",
		TemplateInvalidLocation:  "Could you include the ZIP code? For example: Steubenville, 43952.",
		TemplateInvalidName:      "Could you share your name?",
		TemplateInvalidEmail:     "That email doesn't look right. Could you double-check it?",
		TemplateInvalidPhone:     "Please enter a 10-digit phone number, like 740-555-0123.",
		TemplateCallUs:           "If it's easier, you can call us at {{.Brand.Phone}}.",
		TemplateQuestionFallback: "Great question! Our team can answer that during your walkthrough, or call us at {{.Brand.Phone}}.",
		TemplateVisitorSMS:       "Hi {{.FirstName}}, thanks for contacting {{.Brand.Name}}! Book your free walkthrough: {{.Brand.BookingURL}}",
		TemplatePushTitle:        "New lead: {{.Name}}",
		TemplatePushBody:         "{{.FacilityType}} in {{.Location}}, {{.Frequency}}. {{.Phone}} / {{.Email}}",
		TemplateEmailSubject:     "New cleaning lead - {{.Name}} ({{.FacilityType}})",
	}
}

var templateFuncs = template.FuncMap{
	"join":  func(items []string) string { return joinOptions(items) },
	"lower": strings.ToLower,
}

// joinOptions renders "A, B, or C".
func joinOptions(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " or " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + ", or " + items[len(items)-1]
}

// LoadFile reads a YAML profile and overlays it on Default. Empty fields keep
// their defaults; templates are merged key by key.
func LoadFile(path string) (*Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("brand: read profile: %w", err)
	}
	var overlay Profile
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return nil, fmt.Errorf("brand: parse profile: %w", err)
	}

	p := Default()
	p.merge(&overlay)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Profile) merge(o *Profile) {
	setIf := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	setIf(&p.Name, o.Name)
	setIf(&p.Slogan, o.Slogan)
	setIf(&p.AssistantName, o.AssistantName)
	setIf(&p.BookingURL, o.BookingURL)
	setIf(&p.Phone, o.Phone)
	setIf(&p.Email, o.Email)
	setIf(&p.ServiceArea, o.ServiceArea)
	setIf(&p.Actions.Book, o.Actions.Book)
	setIf(&p.Actions.Call, o.Actions.Call)
	setIf(&p.Actions.Email, o.Actions.Email)
	if len(o.Services) > 0 {
		p.Services = o.Services
	}
	if len(o.FacilityTypes) > 0 {
		p.FacilityTypes = o.FacilityTypes
	}
	if len(o.Frequencies) > 0 {
		p.Frequencies = o.Frequencies
	}
	if o.MaxInvalidAnswers > 0 {
		p.MaxInvalidAnswers = o.MaxInvalidAnswers
	}
	for name, body := range o.Templates {
		if strings.TrimSpace(body) != "" {
			p.Templates[name] = body
		}
	}
}

// Validate rejects profiles the chat cannot run with.
func (p *Profile) Validate() error {
	var errs []error
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, errors.New("brand: name is required"))
	}
	if strings.TrimSpace(p.BookingURL) == "" {
		errs = append(errs, errors.New("brand: booking_url is required"))
	}
	if len(p.FacilityTypes) == 0 {
		errs = append(errs, errors.New("brand: at least one facility type is required"))
	}
	if err := p.compile(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (p *Profile) compile() error {
	p.once.Do(func() {
		root := template.New("brand").Funcs(templateFuncs).Option("missingkey=zero")
		for name, body := range p.Templates {
			if _, err := root.New(name).Parse(body); err != nil {
				p.compErr = fmt.Errorf("brand: template %q: %w", name, err)
				return
			}
		}
		p.compiled = root
	})
	return p.compErr
}

// Render executes the named template against data. data.Brand is set to p
// when empty.
func (p *Profile) Render(name string, data TemplateData) (string, error) {
	if err := p.compile(); err != nil {
		return "", err
	}
	tmpl := p.compiled.Lookup(name)
	if tmpl == nil {
		return "", fmt.Errorf("brand: unknown template %q", name)
	}
	if data.Brand == nil {
		data.Brand = p
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("brand: render %q: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// RenderOrEmpty is Render returning "" on error. Templates are checked by
// Validate at load time.
func (p *Profile) RenderOrEmpty(name string, data TemplateData) string {
	out, err := p.Render(name, data)
	if err != nil {
		return ""
	}
	return out
}

// ActionReplies returns the quick replies offered once the intake is done.
func (p *Profile) ActionReplies() []string {
	out := make([]string, 0, 3)
	for _, label := range []string{p.Actions.Book, p.Actions.Call, p.Actions.Email} {
		if label != "" {
			out = append(out, label)
		}
	}
	return out
}
