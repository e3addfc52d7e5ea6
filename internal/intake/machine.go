// Package intake runs the scripted lead questionnaire. It is pure: no I/O,
// no clocks, so a conversation can be rebuilt by replaying user input.
package intake

import (
	"strings"

	"github.com/wolfman30/facility-lead-chat/internal/brand"
)

var restartPhrases = map[string]struct{}{
	"start over": {},
	"restart":    {},
	"reset":      {},
}

// Machine advances a State one user message at a time.
type Machine struct {
	profile *brand.Profile
}

// NewMachine builds a machine speaking for profile. A nil profile uses brand.Default.
func NewMachine(profile *brand.Profile) *Machine {
	if profile == nil {
		profile = brand.Default()
	}
	return &Machine{profile: profile}
}

// Profile returns the brand the machine renders with.
func (m *Machine) Profile() *brand.Profile {
	return m.profile
}

// Greeting is the opening turn shown before the visitor types anything.
func (m *Machine) Greeting() Turn {
	return Turn{
		Text:         m.render(TemplateFor(StepFacilityType, true), Answers{}),
		QuickReplies: m.quickReplies(StepFacilityType),
		Step:         StepFacilityType,
	}
}

// Prompt re-asks the question for the state's current step.
func (m *Machine) Prompt(state State) Turn {
	if state.Complete() {
		return Turn{
			Text:         m.render(brand.TemplateFollowUp, state.Answers),
			QuickReplies: m.profile.ActionReplies(),
			Step:         StepComplete,
		}
	}
	return Turn{
		Text:         m.render(TemplateFor(state.Step, false), state.Answers),
		QuickReplies: m.quickReplies(state.Step),
		Step:         state.Step,
	}
}

// Advance applies one user message.
func (m *Machine) Advance(state State, input string) (State, Turn) {
	if state.Step == "" {
		state = NewState()
	}
	text := collapse(input)

	if _, ok := restartPhrases[strings.ToLower(strings.Trim(text, ".!"))]; ok {
		fresh := NewState()
		turn := m.Prompt(fresh)
		turn.Text = m.render(brand.TemplateRestart, Answers{}) + "\n" + turn.Text
		turn.Restarted = true
		return fresh, turn
	}

	if state.Complete() {
		turn := m.Prompt(state)
		turn.Question = strings.Contains(text, "?")
		return state, turn
	}

	if text == "" {
		turn := m.Prompt(state)
		turn.Text = m.render(brand.TemplateEmptyAnswer, state.Answers) + "\n" + turn.Text
		return state, turn
	}

	if strings.Contains(text, "?") && !m.answers(state, text) {
		turn := m.Prompt(state)
		turn.Question = true
		return state, turn
	}

	next, ok := m.accept(state, text)
	if !ok {
		state.InvalidAttempts++
		turn := m.Prompt(state)
		msg := m.render(invalidTemplate(state.Step), state.Answers)
		if limit := m.profile.MaxInvalidAnswers; limit > 0 && state.InvalidAttempts >= limit {
			msg += " " + m.render(brand.TemplateCallUs, state.Answers)
		}
		turn.Text = msg
		turn.Invalid = true
		return state, turn
	}

	next.InvalidAttempts = 0
	next.Step = state.Step.next()
	if next.Complete() {
		return next, Turn{
			Text:         m.render(brand.TemplateComplete, next.Answers),
			QuickReplies: m.profile.ActionReplies(),
			Step:         StepComplete,
			Completed:    true,
		}
	}
	return next, m.Prompt(next)
}

// Replay rebuilds the state reached after the given user messages.
func (m *Machine) Replay(inputs []string) State {
	state := NewState()
	for _, in := range inputs {
		state, _ = m.Advance(state, in)
	}
	return state
}

func (m *Machine) accept(state State, text string) (State, bool) {
	a := &state.Answers
	switch state.Step {
	case StepFacilityType:
		if opt, ok := MatchOption(m.profile.FacilityTypes, text); ok {
			a.FacilityType = opt
		} else {
			a.FacilityType = text
		}
	case StepLocation:
		city, zip, ok := ParseLocation(text)
		if !ok {
			return state, false
		}
		a.City, a.ZIP = city, zip
		a.Location = zip
		if city != "" {
			a.Location = city + ", " + zip
		}
	case StepFrequency:
		if opt, ok := MatchOption(m.profile.Frequencies, text); ok {
			a.Frequency = opt
		} else {
			a.Frequency = text
		}
	case StepName:
		name, ok := CleanName(text)
		if !ok {
			return state, false
		}
		a.Name = name
	case StepEmail:
		email, ok := ValidEmail(text)
		if !ok {
			return state, false
		}
		a.Email = email
	case StepPhone:
		phone, ok := NormalizePhone(text)
		if !ok {
			return state, false
		}
		a.Phone = phone
	default:
		return state, false
	}
	return state, true
}

// answers reports whether text counts as an answer for the current step.
// Steps with quick replies take free text, so only an exact option wins there.
func (m *Machine) answers(state State, text string) bool {
	if opts := m.optionsFor(state.Step); len(opts) > 0 {
		_, ok := MatchOption(opts, text)
		return ok
	}
	_, ok := m.accept(state, text)
	return ok
}

func (m *Machine) optionsFor(step Step) []string {
	switch step {
	case StepFacilityType:
		return m.profile.FacilityTypes
	case StepFrequency:
		return m.profile.Frequencies
	}
	return nil
}

func (m *Machine) quickReplies(step Step) []string {
	opts := m.optionsFor(step)
	if len(opts) == 0 {
		return nil
	}
	out := make([]string, len(opts))
	copy(out, opts)
	return out
}

func (m *Machine) render(name string, answers Answers) string {
	return m.profile.RenderOrEmpty(name, answers.TemplateData())
}

// TemplateFor maps a step to the template that asks it. The first question
// uses the greeting when opening is true.
func TemplateFor(step Step, opening bool) string {
	switch step {
	case StepFacilityType:
		if opening {
			return brand.TemplateGreeting
		}
		return brand.TemplateAskFacility
	case StepLocation:
		return brand.TemplateAskLocation
	case StepFrequency:
		return brand.TemplateAskFrequency
	case StepName:
		return brand.TemplateAskName
	case StepEmail:
		return brand.TemplateAskEmail
	case StepPhone:
		return brand.TemplateAskPhone
	}
	return brand.TemplateFollowUp
}

func invalidTemplate(step Step) string {
	switch step {
	case StepLocation:
		return brand.TemplateInvalidLocation
	case StepName:
		return brand.TemplateInvalidName
	case StepEmail:
		return brand.TemplateInvalidEmail
	case StepPhone:
		return brand.TemplateInvalidPhone
	}
	return brand.TemplateEmptyAnswer
}
