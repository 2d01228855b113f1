package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/opnwatch/internal/config"
)

func TestTelegram_Send(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot123:abc/sendMessage", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	defer server.Close()

	tg := NewTelegram(&config.TelegramConfig{BotToken: "123:abc", ChatID: "-100", APIURL: server.URL + "/"}, nil)
	err := tg.Send(context.Background(), Notification{Message: "<b>hello</b>"})
	require.NoError(t, err)

	assert.Equal(t, "-100", got["chat_id"])
	assert.Equal(t, "<b>hello</b>", got["text"])
	assert.Equal(t, "HTML", got["parse_mode"])
	assert.Equal(t, true, got["disable_web_page_preview"])
}

func TestTelegram_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities"}`))
	}))
	defer server.Close()

	tg := NewTelegram(&config.TelegramConfig{BotToken: "t", ChatID: "1", APIURL: server.URL}, nil)
	err := tg.Send(context.Background(), Notification{Message: "<b>broken"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can't parse entities")
}

func TestTelegram_NonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer server.Close()

	tg := NewTelegram(&config.TelegramConfig{BotToken: "t", ChatID: "1", APIURL: server.URL}, nil)
	err := tg.Send(context.Background(), Notification{Message: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestTelegram_EmptyMessage(t *testing.T) {
	tg := NewTelegram(&config.TelegramConfig{BotToken: "t", ChatID: "1"}, nil)
	for _, msg := range []string{"", "   ", "\n\t"} {
		err := tg.Send(context.Background(), Notification{Message: msg})
		assert.True(t, errors.Is(err, ErrEmptyMessage), "message %q", msg)
	}
}

func TestTelegram_TokenRedacted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	tg := NewTelegram(&config.TelegramConfig{BotToken: "secret-token", ChatID: "1", APIURL: url}, nil)
	err := tg.Send(context.Background(), Notification{Message: "x"})
	require.Error(t, err)
	assert.False(t, strings.Contains(err.Error(), "secret-token"), err.Error())
}

func TestPlainText(t *testing.T) {
	in := "🚨 <b>ALERT: R&amp;D</b> 🚨\n\n\n\n<code>10 &lt; 20</code>"
	assert.Equal(t, "🚨 ALERT: R&D 🚨\n\n10 < 20", PlainText(in))
}
