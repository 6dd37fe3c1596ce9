package email_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/invoicely/pkg/email"
)

func validParams() email.SendEmailParams {
	return email.SendEmailParams{
		SendTo:   "client@example.com",
		ReplyTo:  "owner@example.com",
		Subject:  "Invoice #abcd1234 from Jane",
		BodyHTML: "<p>hello</p>",
		Tag:      "invoice",
	}
}

func TestSendEmailParams_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(p *email.SendEmailParams)
		ok     bool
	}{
		{name: "valid", mutate: func(p *email.SendEmailParams) {}, ok: true},
		{name: "no reply-to", mutate: func(p *email.SendEmailParams) { p.ReplyTo = "" }, ok: true},
		{name: "missing recipient", mutate: func(p *email.SendEmailParams) { p.SendTo = "" }},
		{name: "bad recipient", mutate: func(p *email.SendEmailParams) { p.SendTo = "not-an-email" }},
		{name: "bad reply-to", mutate: func(p *email.SendEmailParams) { p.ReplyTo = "nope" }},
		{name: "blank subject", mutate: func(p *email.SendEmailParams) { p.Subject = "  " }},
		{name: "empty body", mutate: func(p *email.SendEmailParams) { p.BodyHTML = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := validParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, email.ErrInvalidParams)
		})
	}
}

func TestDevSender(t *testing.T) {
	t.Parallel()

	t.Run("writes html and envelope", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		sender := email.NewDevSender(dir)

		require.NoError(t, sender.SendEmail(context.Background(), validParams()))

		htmlFiles, err := filepath.Glob(filepath.Join(dir, "*_invoice.html"))
		require.NoError(t, err)
		require.Len(t, htmlFiles, 1)
		body, err := os.ReadFile(htmlFiles[0])
		require.NoError(t, err)
		assert.Equal(t, "<p>hello</p>", string(body))

		raw, err := os.ReadFile(strings.TrimSuffix(htmlFiles[0], ".html") + ".json")
		require.NoError(t, err)
		var env map[string]string
		require.NoError(t, json.Unmarshal(raw, &env))
		assert.Equal(t, "client@example.com", env["send_to"])
		assert.Equal(t, "owner@example.com", env["reply_to"])
	})

	t.Run("rejects invalid params", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		p := validParams()
		p.SendTo = ""

		err := email.NewDevSender(dir).SendEmail(context.Background(), p)
		assert.ErrorIs(t, err, email.ErrInvalidParams)

		entries, _ := os.ReadDir(dir)
		assert.Empty(t, entries)
	})
}

func TestPostmarkSender(t *testing.T) {
	t.Parallel()

	t.Run("config validation", func(t *testing.T) {
		t.Parallel()
		_, err := email.NewPostmarkSender(email.Config{SenderEmail: "a@b.co"})
		assert.ErrorIs(t, err, email.ErrInvalidConfig)

		_, err = email.NewPostmarkSender(email.Config{PostmarkServerToken: "tok", SenderEmail: "bad"})
		assert.ErrorIs(t, err, email.ErrInvalidConfig)
	})

	t.Run("sends through api", func(t *testing.T) {
		t.Parallel()
		var got map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "server-token", r.Header.Get("X-Postmark-Server-Token"))
			_ = json.NewDecoder(r.Body).Decode(&got)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ErrorCode":0,"Message":"OK","MessageID":"m-1"}`))
		}))
		t.Cleanup(srv.Close)

		sender, err := email.NewPostmarkSender(email.Config{
			PostmarkServerToken: "server-token",
			SenderEmail:         "invoices@example.com",
			SenderName:          "Invoicely",
		}, email.WithBaseURL(srv.URL))
		require.NoError(t, err)

		require.NoError(t, sender.SendEmail(context.Background(), validParams()))
		assert.Equal(t, "client@example.com", got["To"])
		assert.Equal(t, "owner@example.com", got["ReplyTo"])
		assert.Contains(t, got["From"], "invoices@example.com")
	})

	t.Run("api error code", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ErrorCode":406,"Message":"Inactive recipient"}`))
		}))
		t.Cleanup(srv.Close)

		sender, err := email.NewPostmarkSender(email.Config{
			PostmarkServerToken: "server-token",
			SenderEmail:         "invoices@example.com",
		}, email.WithBaseURL(srv.URL))
		require.NoError(t, err)

		err = sender.SendEmail(context.Background(), validParams())
		assert.ErrorIs(t, err, email.ErrFailedToSendEmail)
	})
}

func TestNew(t *testing.T) {
	t.Parallel()

	s, err := email.New(email.Config{DevMode: true, DevDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &email.DevSender{}, s)

	_, err = email.New(email.Config{DevMode: false})
	assert.ErrorIs(t, err, email.ErrInvalidConfig)
}

func TestRender(t *testing.T) {
	t.Parallel()

	html, err := email.Render(context.Background(), templ.Raw("<b>hi</b>"))
	require.NoError(t, err)
	assert.Equal(t, "<b>hi</b>", html)
}
