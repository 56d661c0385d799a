package validation

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aidin1998/crowdfund/pkg/errors"
	"github.com/Aidin1998/crowdfund/pkg/models"
)

func ptr[T any](v T) *T { return &v }

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var e *errors.Error
	require.True(t, errors.As(err, &e), "expected *errors.Error, got %v", err)
	require.True(t, errors.Is(err, errors.Invalid))
	out := map[string]string{}
	for _, f := range e.Fields {
		out[f.Field] = f.Kind
	}
	return out
}

func TestValidateUserCreate(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateStruct(models.UserCreate{Email: "ada@example.com", Password: "correct-horse"}))

	err := v.ValidateStruct(models.UserCreate{Email: "not-an-email", Password: "short"})
	fields := fieldsOf(t, err)
	assert.Equal(t, "email", fields["email"])
	assert.Equal(t, "min", fields["password"])
}

func TestValidateProjectLengthLimits(t *testing.T) {
	v := NewValidator()

	ok := models.ProjectCreate{
		Title:            strings.Repeat("t", 255),
		ShortDescription: ptr(strings.Repeat("s", 500)),
		ImageURL:         ptr("https://cdn.example.com/a.png"),
	}
	assert.NoError(t, v.ValidateStruct(ok))

	tooLong := models.ProjectCreate{
		Title:            strings.Repeat("t", 256),
		ShortDescription: ptr(strings.Repeat("s", 501)),
		ImageURL:         ptr("ftp://cdn.example.com/a.png"),
	}
	fields := fieldsOf(t, v.ValidateStruct(tooLong))
	assert.Equal(t, "max", fields["title"])
	assert.Equal(t, "max", fields["short_description"])
	assert.Equal(t, "http_url", fields["image_url"])

	fields = fieldsOf(t, v.ValidateStruct(models.ProjectCreate{}))
	assert.Equal(t, "required", fields["title"])
}

func TestValidateSlug(t *testing.T) {
	v := NewValidator()

	for _, good := range []string{"solar-boat", "a", "project-2"} {
		assert.NoError(t, v.ValidateStruct(models.ProjectCreate{Title: "x", Slug: ptr(good)}), good)
	}
	for _, bad := range []string{"Solar", "solar--boat", "-solar", "solar boat", "solar_"} {
		fields := fieldsOf(t, v.ValidateStruct(models.ProjectCreate{Title: "x", Slug: ptr(bad)}))
		assert.Equal(t, "slug", fields["slug"], bad)
	}
}

func TestValidateStatusEnum(t *testing.T) {
	v := NewValidator()

	for _, s := range models.ProjectStatuses {
		assert.NoError(t, v.ValidateStruct(models.AdminProjectUpdate{Status: ptr(s)}), s)
	}
	fields := fieldsOf(t, v.ValidateStruct(models.AdminProjectUpdate{Status: ptr(models.ProjectStatus("ended"))}))
	assert.Equal(t, "project_status", fields["status"])
}

func TestValidateMoney(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateStruct(models.ContributionRequest{Amount: decimal.RequireFromString("25.50")}))

	for _, bad := range []string{"0", "-5", "10.555", "10000000000"} {
		fields := fieldsOf(t, v.ValidateStruct(models.ContributionRequest{Amount: decimal.RequireFromString(bad)}))
		assert.Equal(t, "money", fields["amount"], bad)
	}

	zero := decimal.Zero
	assert.NoError(t, v.ValidateStruct(models.AdminProjectUpdate{FundingCurrent: &zero}))
}

func TestSanitize(t *testing.T) {
	v := NewValidator()

	assert.Equal(t, "Hello", v.SanitizeText(`<b>Hello</b><script>alert(1)</script>`))
	assert.Equal(t, `Tom & Jerry's "show"`, v.SanitizeText(`Tom & Jerry's <b>"show"</b>`))
	assert.Equal(t, "a < b", v.SanitizeText("a < b"))

	out := v.SanitizeHTML(`<p>Fund <a href="https://x.io" onclick="steal()">us</a></p><script>alert(1)</script>`)
	assert.Contains(t, out, "<p>")
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "<script>")
}
