package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minishop/internal/model"
)

func TestEscapeText(t *testing.T) {
	assert.Equal(t, "a &amp; b", EscapeText("a & b"))
	assert.Equal(t, "&lt;b&gt;bold&lt;/b&gt;", EscapeText("<b>bold</b>"))
	assert.Equal(t, "plain", EscapeText("plain"))
}

func TestSend(t *testing.T) {
	var gotPath string
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("token123", "-100500")
	n.apiBase = srv.URL

	require.NoError(t, n.Send(context.Background(), "hello"))
	assert.Equal(t, "/bottoken123/sendMessage", gotPath)
	assert.Equal(t, "-100500", got["chat_id"])
	assert.Equal(t, "hello", got["text"])
	assert.Equal(t, "HTML", got["parse_mode"])
}

func TestSendUnconfigured(t *testing.T) {
	n := NewTelegramNotifier("", "")
	assert.ErrorIs(t, n.Send(context.Background(), "hello"), ErrNoBotConfig)
}

func TestSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok": false}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("t", "c")
	n.apiBase = srv.URL
	assert.Error(t, n.Send(context.Background(), "hello"))
}

func TestOrderMessagesEscapeUserInput(t *testing.T) {
	o := model.Order{
		ID:            "a1",
		ProductTitle:  "Course <promo> & more",
		Price:         "1500",
		CustomerName:  "<Ivan>",
		CustomerEmail: "ivan@example.com",
		CustomerPhone: "+7 900 000-00-00",
	}

	for _, msg := range []string{NewOrderMessage(o), OrderFailedMessage(o)} {
		assert.Contains(t, msg, "Course &lt;promo&gt; &amp; more")
		assert.Contains(t, msg, "&lt;Ivan&gt;")
		assert.NotContains(t, msg, "<promo>")
		assert.NotContains(t, msg, "<Ivan>")
	}
}

func TestNewOrderMessageDashesEmptyFields(t *testing.T) {
	msg := NewOrderMessage(model.Order{ID: "a1", ProductTitle: "Course"})
	assert.Contains(t, msg, "—")
}
