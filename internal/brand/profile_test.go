package brand

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestRenderGreeting(t *testing.T) {
	p := Default()
	out, err := p.Render(TemplateGreeting, TemplateData{})
	require.NoError(t, err)
	assert.Contains(t, out, "I'm Aura with Pure Aura Cleaning Solutions")
	assert.Contains(t, out, "Office, Medical Office, Bank, Property Management, or Other?")
}

func TestRenderComplete(t *testing.T) {
	p := Default()
	out, err := p.Render(TemplateComplete, TemplateData{
		FirstName:    "Dana",
		FacilityType: "Medical Office",
		Location:     "Steubenville, 43952",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Thank you, Dana!")
	assert.Contains(t, out, "medical office in Steubenville, 43952")
	assert.True(t, strings.HasSuffix(out, p.BookingURL))
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := Default().Render("nope", TemplateData{})
	require.Error(t, err)
	assert.Empty(t, Default().RenderOrEmpty("nope", TemplateData{}))
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	p, err := LoadFile(filepath.Join("testdata", "profile.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "Shine Commercial Janitorial", p.Name)
	assert.Equal(t, "Sunny", p.AssistantName)
	assert.Equal(t, []string{"Office", "Warehouse", "Other"}, p.FacilityTypes)
	// untouched fields keep defaults
	assert.Equal(t, Default().Frequencies, p.Frequencies)
	assert.Equal(t, "Book Walkthrough", p.Actions.Book)

	out, err := p.Render(TemplateAskName, TemplateData{})
	require.NoError(t, err)
	assert.Equal(t, "Who should we ask for?", out)

	greeting, err := p.Render(TemplateGreeting, TemplateData{})
	require.NoError(t, err)
	assert.Contains(t, greeting, "Office, Warehouse, or Other?")
}

func TestLoadFileRejectsBrokenTemplate(t *testing.T) {
	_, err := LoadFile(filepath.Join("testdata", "broken.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "greeting")
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join("testdata", "missing.yaml"))
	require.Error(t, err)
}

func TestValidateRequiresFields(t *testing.T) {
	p := Default()
	p.Name = ""
	p.BookingURL = " "
	p.FacilityTypes = nil
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
	assert.Contains(t, err.Error(), "booking_url is required")
	assert.Contains(t, err.Error(), "facility type")
}

func TestJoinOptions(t *testing.T) {
	assert.Equal(t, "", joinOptions(nil))
	assert.Equal(t, "A", joinOptions([]string{"A"}))
	assert.Equal(t, "A or B", joinOptions([]string{"A", "B"}))
	assert.Equal(t, "A, B, or C", joinOptions([]string{"A", "B", "C"}))
}

func TestActionReplies(t *testing.T) {
	p := Default()
	p.Actions.Email = ""
	assert.Equal(t, []string{"Book Walkthrough", "Call Now"}, p.ActionReplies())
}
