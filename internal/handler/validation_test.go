package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duohabit/duohabit/internal/derive"
)

// newJSONContext builds an echo context for a request that already
// passed the JWT middleware.
func newJSONContext(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", "user-1")
	return c, rec
}

func TestRequestDate(t *testing.T) {
	c, _ := newJSONContext(t, http.MethodGet, "/v1/habits?date=2026-09-01", "")
	d, err := requestDate(c)
	require.NoError(t, err)
	assert.Equal(t, "2026-09-01", d)

	c, _ = newJSONContext(t, http.MethodGet, "/v1/habits", "")
	d, err = requestDate(c)
	require.NoError(t, err)
	assert.Equal(t, derive.DateString(time.Now().UTC()), d)

	c, _ = newJSONContext(t, http.MethodGet, "/v1/habits?date=09-01-2026", "")
	_, err = requestDate(c)
	assert.Error(t, err)
}

func TestRegister_RejectsIncompleteBodies(t *testing.T) {
	h := &AuthHandler{}

	cases := []struct {
		name string
		body string
	}{
		{"missing email", `{"password":"longenough","name":"A"}`},
		{"missing password", `{"email":"a@b.c","name":"A"}`},
		{"missing name", `{"email":"a@b.c","password":"longenough"}`},
		{"short password", `{"email":"a@b.c","password":"short","name":"A"}`},
		{"blank name", `{"email":"a@b.c","password":"longenough","name":"   "}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newJSONContext(t, http.MethodPost, "/v1/auth/register", tc.body)
			require.NoError(t, h.Register(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateHabit_RejectsInvalidBodies(t *testing.T) {
	h := &HabitHandler{}

	cases := []struct {
		name string
		body string
	}{
		{"blank name", `{"name":"   "}`},
		{"weekly without days", `{"name":"Run","frequency":"weekly"}`},
		{"weekly bad day", `{"name":"Run","frequency":"weekly","frequency_days":["funday"]}`},
		{"daily with days", `{"name":"Run","frequency":"daily","frequency_days":["monday"]}`},
		{"unknown frequency", `{"name":"Run","frequency":"hourly"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newJSONContext(t, http.MethodPost, "/v1/habits", tc.body)
			require.NoError(t, h.Create(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestComplete_RejectsMalformedDate(t *testing.T) {
	h := &HabitHandler{}

	c, rec := newJSONContext(t, http.MethodPost, "/v1/habits/h1/complete", `{"date":"yesterday"}`)
	c.SetParamNames("id")
	c.SetParamValues("h1")
	require.NoError(t, h.Complete(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendNote_RejectsBadContent(t *testing.T) {
	h := &NoteHandler{}

	cases := []struct {
		name string
		body string
	}{
		{"missing content", `{}`},
		{"empty content", `{"content":""}`},
		{"whitespace only", `{"content":"   "}`},
		{"over the rune cap", `{"content":"` + strings.Repeat("x", maxNoteRunes+1) + `"}`},
		{"over the cap after trim", `{"content":" ` + strings.Repeat("é", maxNoteRunes+1) + ` "}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newJSONContext(t, http.MethodPost, "/v1/notes", tc.body)
			require.NoError(t, h.Send(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestTrimDescription(t *testing.T) {
	assert.Nil(t, trimDescription(nil))

	blank := "   "
	assert.Nil(t, trimDescription(&blank))

	padded := "  keep it up  "
	got := trimDescription(&padded)
	require.NotNil(t, got)
	assert.Equal(t, "keep it up", *got)
}
