package intake

import "github.com/wolfman30/facility-lead-chat/internal/brand"

// Step identifies the question currently being asked.
type Step string

const (
	StepFacilityType Step = "facility_type"
	StepLocation     Step = "location"
	StepFrequency    Step = "frequency"
	StepName         Step = "name"
	StepEmail        Step = "email"
	StepPhone        Step = "phone"
	StepComplete     Step = "complete"
)

// Steps lists the questions in the order they are asked.
var Steps = []Step{StepFacilityType, StepLocation, StepFrequency, StepName, StepEmail, StepPhone}

func (s Step) next() Step {
	for i, step := range Steps {
		if step == s && i+1 < len(Steps) {
			return Steps[i+1]
		}
	}
	return StepComplete
}

// Answers are the facts collected so far.
type Answers struct {
	FacilityType string `json:"facility_type,omitempty"`
	Location     string `json:"location,omitempty"`
	City         string `json:"city,omitempty"`
	ZIP          string `json:"zip,omitempty"`
	Frequency    string `json:"frequency,omitempty"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
}

// State is the whole conversation state: one step pointer plus answers.
type State struct {
	Step            Step    `json:"step"`
	Answers         Answers `json:"answers"`
	InvalidAttempts int     `json:"invalid_attempts,omitempty"`
}

// NewState returns a conversation positioned at the first question.
func NewState() State {
	return State{Step: StepFacilityType}
}

// Complete reports whether every question has been answered.
func (s State) Complete() bool {
	return s.Step == StepComplete
}

// TemplateData exposes the answers to brand templates.
func (a Answers) TemplateData() brand.TemplateData {
	return brand.TemplateData{
		FirstName:    FirstName(a.Name),
		Name:         a.Name,
		FacilityType: a.FacilityType,
		City:         a.City,
		ZIP:          a.ZIP,
		Location:     a.Location,
		Frequency:    a.Frequency,
		Email:        a.Email,
		Phone:        a.Phone,
	}
}

// Turn is one bot reply.
type Turn struct {
	Text         string   `json:"text"`
	QuickReplies []string `json:"quick_replies,omitempty"`
	Step         Step     `json:"step"`
	// Completed is set only on the turn that answered the last question.
	Completed bool `json:"completed,omitempty"`
	// Question marks off-script input; the caller may answer it before Text.
	Question  bool `json:"question,omitempty"`
	Invalid   bool `json:"invalid,omitempty"`
	Restarted bool `json:"restarted,omitempty"`
}
