package intake

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/facility-lead-chat/internal/brand"
)

func advanceAll(t *testing.T, m *Machine, inputs ...string) (State, Turn) {
	t.Helper()
	state := NewState()
	var turn Turn
	for _, in := range inputs {
		state, turn = m.Advance(state, in)
	}
	return state, turn
}

func TestGreeting(t *testing.T) {
	m := NewMachine(nil)
	turn := m.Greeting()
	assert.Equal(t, StepFacilityType, turn.Step)
	assert.Contains(t, turn.Text, "What type of facility is this")
	assert.Equal(t, []string{"Office", "Medical Office", "Bank", "Property Management", "Other"}, turn.QuickReplies)
}

func TestHappyPathFollowsStepOrder(t *testing.T) {
	m := NewMachine(nil)
	state := NewState()

	steps := []struct {
		input string
		want  Step
	}{
		{"medical office", StepLocation},
		{"Steubenville, 43952", StepFrequency},
		{"Weekly", StepName},
		{"Dana Smith", StepEmail},
		{"dana@example.com", StepPhone},
	}
	for _, s := range steps {
		var turn Turn
		state, turn = m.Advance(state, s.input)
		require.Equal(t, s.want, state.Step, "after %q", s.input)
		assert.Equal(t, s.want, turn.Step)
		assert.False(t, turn.Completed)
		assert.False(t, turn.Invalid)
	}

	state, turn := m.Advance(state, "(740) 555-0123")
	require.True(t, state.Complete())
	assert.True(t, turn.Completed)
	assert.Contains(t, turn.Text, "Thank you, Dana!")
	assert.Contains(t, turn.Text, brand.Default().BookingURL)
	assert.Equal(t, []string{"Book Walkthrough", "Call Now", "Email Me"}, turn.QuickReplies)

	assert.Equal(t, Answers{
		FacilityType: "Medical Office",
		Location:     "Steubenville, 43952",
		City:         "Steubenville",
		ZIP:          "43952",
		Frequency:    "Weekly",
		Name:         "Dana Smith",
		Email:        "dana@example.com",
		Phone:        "+17405550123",
	}, state.Answers)
}

func TestFrequencyQuickRepliesOffered(t *testing.T) {
	m := NewMachine(nil)
	_, turn := advanceAll(t, m, "Bank", "Wheeling WV 26003")
	assert.Equal(t, StepFrequency, turn.Step)
	assert.Contains(t, turn.Text, "Wheeling")
	assert.Equal(t, brand.Default().Frequencies, turn.QuickReplies)
}

func TestFreeTextFacilityAccepted(t *testing.T) {
	m := NewMachine(nil)
	state, _ := advanceAll(t, m, "Dental lab")
	assert.Equal(t, "Dental lab", state.Answers.FacilityType)
	assert.Equal(t, StepLocation, state.Step)
}

func TestLocationWithoutZipIsInvalid(t *testing.T) {
	m := NewMachine(nil)
	state, turn := advanceAll(t, m, "Office", "Steubenville")
	assert.Equal(t, StepLocation, state.Step)
	assert.True(t, turn.Invalid)
	assert.Contains(t, turn.Text, "ZIP")
	assert.Equal(t, 1, state.InvalidAttempts)
}

func TestRepeatedInvalidAnswersOfferPhone(t *testing.T) {
	m := NewMachine(nil)
	state, turn := advanceAll(t, m, "Office", "43952", "Weekly", "Dana", "nope", "still nope", "nah")
	assert.Equal(t, StepEmail, state.Step)
	assert.Equal(t, 3, state.InvalidAttempts)
	assert.Contains(t, turn.Text, brand.Default().Phone)

	state, _ = m.Advance(state, "dana@example.com")
	assert.Equal(t, 0, state.InvalidAttempts)
}

func TestQuestionDoesNotAdvance(t *testing.T) {
	m := NewMachine(nil)
	state, turn := advanceAll(t, m, "Office", "Do you work weekends?")
	assert.Equal(t, StepLocation, state.Step)
	assert.True(t, turn.Question)
	assert.Contains(t, turn.Text, "What city and ZIP")
}

func TestValidAnswerWithQuestionMarkAdvances(t *testing.T) {
	m := NewMachine(nil)
	cases := []struct {
		name  string
		prior []string
		input string
		want  Step
		check func(t *testing.T, a Answers)
	}{
		{
			name:  "location",
			prior: []string{"Office"},
			input: "Steubenville, OH 43952?",
			want:  StepFrequency,
			check: func(t *testing.T, a Answers) {
				assert.Equal(t, "43952", a.ZIP)
				assert.Equal(t, "Steubenville", a.City)
			},
		},
		{
			name:  "facility option",
			input: "Bank?",
			want:  StepLocation,
			check: func(t *testing.T, a Answers) { assert.Equal(t, "Bank", a.FacilityType) },
		},
		{
			name:  "email",
			prior: []string{"Office", "43952", "Weekly", "Dana"},
			input: "dana@example.com?",
			want:  StepPhone,
			check: func(t *testing.T, a Answers) { assert.Equal(t, "dana@example.com", a.Email) },
		},
		{
			name:  "phone",
			prior: []string{"Office", "43952", "Weekly", "Dana", "dana@example.com"},
			input: "is 740-555-0123 ok?",
			want:  StepComplete,
			check: func(t *testing.T, a Answers) { assert.Equal(t, "+17405550123", a.Phone) },
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state, _ := advanceAll(t, m, tc.prior...)
			next, turn := m.Advance(state, tc.input)
			assert.False(t, turn.Question)
			assert.False(t, turn.Invalid)
			assert.Equal(t, tc.want, next.Step)
			tc.check(t, next.Answers)
		})
	}
}

func TestQuestionAtNameStepDoesNotBecomeName(t *testing.T) {
	m := NewMachine(nil)
	state, turn := advanceAll(t, m, "Office", "43952", "Weekly", "What do you charge?")
	assert.Equal(t, StepName, state.Step)
	assert.True(t, turn.Question)
	assert.Empty(t, state.Answers.Name)
}

func TestEmptyInputRepromptsCurrentStep(t *testing.T) {
	m := NewMachine(nil)
	state, turn := advanceAll(t, m, "   ")
	assert.Equal(t, StepFacilityType, state.Step)
	assert.True(t, strings.HasPrefix(turn.Text, "Sorry, I didn't catch that."))
	assert.NotEmpty(t, turn.QuickReplies)
}

func TestRestart(t *testing.T) {
	m := NewMachine(nil)
	state, turn := advanceAll(t, m, "Office", "43952", "Start over!")
	assert.Equal(t, NewState(), state)
	assert.True(t, turn.Restarted)
	assert.Contains(t, turn.Text, "start over")
}

func TestCompleteNeverCompletesTwice(t *testing.T) {
	m := NewMachine(nil)
	state, _ := advanceAll(t, m, "Office", "43952", "Daily", "Dana", "dana@example.com", "7405550123")
	require.True(t, state.Complete())

	after, turn := m.Advance(state, "Book Walkthrough")
	assert.Equal(t, state, after)
	assert.False(t, turn.Completed)
	assert.Equal(t, StepComplete, turn.Step)
	assert.Contains(t, turn.Text, "Your details are with our team, Dana")

	_, turn = m.Advance(state, "How much does it cost?")
	assert.True(t, turn.Question)
	assert.False(t, turn.Completed)
}

func TestReplayMatchesSequentialAdvance(t *testing.T) {
	m := NewMachine(nil)
	inputs := []string{"Bank", "what?", "Columbus 43215", "Monthly", "Lee Park", "bad", "lee@example.com"}
	want, _ := advanceAll(t, m, inputs...)
	assert.Equal(t, want, m.Replay(inputs))
	assert.Equal(t, StepPhone, want.Step)
}

func TestCustomProfileOptions(t *testing.T) {
	p := brand.Default()
	p.FacilityTypes = []string{"Warehouse", "Other"}
	m := NewMachine(p)
	assert.Equal(t, []string{"Warehouse", "Other"}, m.Greeting().QuickReplies)

	state, _ := m.Advance(NewState(), "warehouse")
	assert.Equal(t, "Warehouse", state.Answers.FacilityType)
}
