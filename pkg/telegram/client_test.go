package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBotAPI struct {
	mu       sync.Mutex
	sent     []map[string]interface{}
	document struct {
		chatID   string
		filename string
		content  string
	}
	updates [][]Update
	offsets []float64
}

func (f *fakeBotAPI) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		writeResult := func(v interface{}) {
			raw, _ := json.Marshal(v)
			json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "result": json.RawMessage(raw)})
		}

		switch r.URL.Path {
		case "/bottest-token/getMe":
			writeResult(User{ID: 1, IsBot: true, Username: "index_bot"})
		case "/bottest-token/sendMessage":
			var body map[string]interface{}
			json.NewDecoder(r.Body).Decode(&body)
			f.sent = append(f.sent, body)
			writeResult(map[string]interface{}{"message_id": len(f.sent)})
		case "/bottest-token/sendDocument":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("bad multipart body: %v", err)
			}
			file, header, err := r.FormFile("document")
			if err == nil {
				content, _ := io.ReadAll(file)
				f.document.content = string(content)
				f.document.filename = header.Filename
			}
			f.document.chatID = r.FormValue("chat_id")
			writeResult(map[string]interface{}{"message_id": 1})
		case "/bottest-token/getFile":
			writeResult(File{FileID: "doc-1", FilePath: "documents/file_1.txt", FileSize: 20})
		case "/file/bottest-token/documents/file_1.txt":
			w.Write([]byte("https://example.com/\n"))
		case "/bottest-token/getUpdates":
			var body map[string]interface{}
			json.NewDecoder(r.Body).Decode(&body)
			f.offsets = append(f.offsets, body["offset"].(float64))
			var batch []Update
			if len(f.updates) > 0 {
				batch, f.updates = f.updates[0], f.updates[1:]
			}
			writeResult(batch)
		case "/bottest-token/setWebhook":
			var body map[string]interface{}
			json.NewDecoder(r.Body).Decode(&body)
			if body["secret_token"] != "s3cret" {
				t.Errorf("Expected secret token, got %v", body["secret_token"])
			}
			writeResult(true)
		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]interface{}{"ok": false, "error_code": 404, "description": "Not Found"})
		}
	})
}

func newTestClient(t *testing.T, api *fakeBotAPI) *Client {
	t.Helper()
	server := httptest.NewServer(api.handler(t))
	t.Cleanup(server.Close)

	c, err := NewClient(Config{Token: "test-token", BaseURL: server.URL, PollTimeout: time.Second, RetryDelay: 10 * time.Millisecond})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestClient_GetMe(t *testing.T) {
	c := newTestClient(t, &fakeBotAPI{})
	me, err := c.GetMe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "index_bot", me.Username)
}

func TestClient_SendMessageSplits(t *testing.T) {
	api := &fakeBotAPI{}
	c := newTestClient(t, api)

	line := strings.Repeat("x", 100) + "\n"
	text := strings.Repeat(line, 50) // 5050 characters

	require.NoError(t, c.SendMessage(context.Background(), 42, text))
	require.Len(t, api.sent, 2)
	for _, msg := range api.sent {
		assert.Equal(t, float64(42), msg["chat_id"])
		assert.LessOrEqual(t, len(msg["text"].(string)), MaxMessageLength)
	}
}

func TestClient_SendDocument(t *testing.T) {
	api := &fakeBotAPI{}
	c := newTestClient(t, api)

	require.NoError(t, c.SendDocument(context.Background(), 7, "results.csv", []byte("URL,Status\n"), "3 URLs"))
	assert.Equal(t, "7", api.document.chatID)
	assert.Equal(t, "results.csv", api.document.filename)
	assert.Equal(t, "URL,Status\n", api.document.content)
}

func TestClient_Download(t *testing.T) {
	c := newTestClient(t, &fakeBotAPI{})
	data, err := c.Download(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/\n", string(data))
}

func TestClient_DownloadTooLarge(t *testing.T) {
	api := &fakeBotAPI{}
	server := httptest.NewServer(api.handler(t))
	defer server.Close()

	c, err := NewClient(Config{Token: "test-token", BaseURL: server.URL, MaxFileSize: 10})
	require.NoError(t, err)

	_, err = c.Download(context.Background(), "doc-1")
	assert.ErrorContains(t, err, "too large")
}

func TestClient_APIError(t *testing.T) {
	c := newTestClient(t, &fakeBotAPI{})
	err := c.DeleteWebhook(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Code)
}

func TestClient_SetWebhook(t *testing.T) {
	c := newTestClient(t, &fakeBotAPI{})
	assert.NoError(t, c.SetWebhook(context.Background(), "https://bot.example.com/telegram/webhook/s3cret", "s3cret"))
}

func TestClient_Poll(t *testing.T) {
	api := &fakeBotAPI{updates: [][]Update{
		{{UpdateID: 10, Message: &Message{Chat: Chat{ID: 1}, Text: "a"}}},
		{{UpdateID: 11, Message: &Message{Chat: Chat{ID: 1}, Text: "b"}}},
	}}
	c := newTestClient(t, api)

	ctx, cancel := context.WithCancel(context.Background())
	var got []string
	err := c.Poll(ctx, func(ctx context.Context, u Update) {
		got = append(got, u.Message.Text)
		if len(got) == 2 {
			cancel()
		}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a", "b"}, got)

	api.mu.Lock()
	defer api.mu.Unlock()
	require.GreaterOrEqual(t, len(api.offsets), 2)
	assert.Equal(t, float64(0), api.offsets[0])
	assert.Equal(t, float64(11), api.offsets[1])
}
