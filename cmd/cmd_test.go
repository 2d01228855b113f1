package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"grimm.is/opnwatch/internal/logging"
)

const testConfig = `
telegram {
  bot_token = "token"
  chat_id   = "42"
}

instance "matriz" {
  url           = "%URL%"
  api_key       = "key"
  api_secret    = "secret"
  alias_name    = "filtro"
  friendly_name = "Matriz"
}

policy {
  blocked_content = ["redes_sociais", "streaming"]
  allowed_content = ["vazio"]
  timezone        = "UTC"
}
`

func writeConfig(t *testing.T, url string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "opnwatch.hcl")
	body := strings.ReplaceAll(testConfig, "%URL%", url)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func captureOut(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := Out
	Out = &buf
	t.Cleanup(func() { Out = orig })
	return &buf
}

func TestRunCheck_ValidConfig(t *testing.T) {
	out := captureOut(t)
	if err := RunCheck(writeConfig(t, "https://fw.example")); err != nil {
		t.Fatalf("RunCheck() error = %v", err)
	}
	for _, want := range []string{"matriz", "Matriz", "https://fw.example", "filtro", "telegram"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunCheck_InvalidConfig(t *testing.T) {
	captureOut(t)
	path := filepath.Join(t.TempDir(), "invalid.hcl")
	if err := os.WriteFile(path, []byte("instance \"x\" {\n  # Missing closing brace\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if err := RunCheck(path); err == nil {
		t.Error("RunCheck() error = nil, want error")
	}
}

func TestRunCheck_MissingFile(t *testing.T) {
	captureOut(t)
	if err := RunCheck(filepath.Join(t.TempDir(), "absent.hcl")); err == nil {
		t.Error("RunCheck() error = nil, want error")
	}
}

func TestRunStatus(t *testing.T) {
	path := writeConfig(t, "https://fw.example")

	tests := []struct {
		at      string
		state   string
		content string
	}{
		{"2024-06-03T08:00:00Z", "BLOCKED", "redes_sociais, streaming"},
		{"2024-06-03T11:30:00Z", "ALLOWED", "vazio"},
		{"2024-06-09T08:00:00Z", "ALLOWED", "vazio"},
	}
	for _, tt := range tests {
		t.Run(tt.at, func(t *testing.T) {
			out := captureOut(t)
			if err := RunStatus(path, tt.at); err != nil {
				t.Fatalf("RunStatus() error = %v", err)
			}
			if !strings.Contains(out.String(), tt.state) {
				t.Errorf("want state %s in:\n%s", tt.state, out.String())
			}
			if !strings.Contains(out.String(), tt.content) {
				t.Errorf("want content %q in:\n%s", tt.content, out.String())
			}
		})
	}
}

func TestRunStatus_BadTime(t *testing.T) {
	captureOut(t)
	if err := RunStatus(writeConfig(t, "https://fw.example"), "tomorrow"); err == nil {
		t.Error("RunStatus() error = nil, want error")
	}
}

func aliasServer(t *testing.T, selected map[string]bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/firewall/alias/searchItem":
			json.NewEncoder(w).Encode(map[string]any{
				"rows": []map[string]string{{"uuid": "u1", "name": "filtro"}},
			})
		case "/api/firewall/alias/getItem/u1":
			content := map[string]any{}
			for name, sel := range selected {
				s := "0"
				if sel {
					s = "1"
				}
				content[name] = map[string]string{"value": name, "selected": s}
			}
			json.NewEncoder(w).Encode(map[string]any{"alias": map[string]any{"content": content}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
}

func TestRunDiff_Drift(t *testing.T) {
	server := aliasServer(t, map[string]bool{"redes_sociais": true, "vazio": true, "streaming": false})
	defer server.Close()
	out := captureOut(t)

	err := RunDiff(writeConfig(t, server.URL), "2024-06-03T08:00:00Z")
	if !errors.Is(err, ErrDrift) {
		t.Fatalf("RunDiff() error = %v, want ErrDrift", err)
	}
	for _, want := range []string{"-vazio", "+streaming", "(BLOCKED)", "(live, " + server.URL + ")"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("diff missing %q:\n%s", want, out.String())
		}
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("stdout closed")
}

func TestRunDiff_WriteError(t *testing.T) {
	server := aliasServer(t, map[string]bool{"redes_sociais": true, "vazio": true, "streaming": false})
	defer server.Close()
	orig := Out
	Out = failingWriter{}
	t.Cleanup(func() { Out = orig })

	err := RunDiff(writeConfig(t, server.URL), "2024-06-03T08:00:00Z")
	if err == nil || errors.Is(err, ErrDrift) {
		t.Fatalf("RunDiff() error = %v, want the write failure", err)
	}
	if !strings.Contains(err.Error(), "stdout closed") {
		t.Errorf("error %q does not carry the write failure", err)
	}
}

func TestRunDiff_InSync(t *testing.T) {
	server := aliasServer(t, map[string]bool{"vazio": true, "streaming": false})
	defer server.Close()
	out := captureOut(t)

	if err := RunDiff(writeConfig(t, server.URL), "2024-06-03T12:00:00Z"); err != nil {
		t.Fatalf("RunDiff() error = %v", err)
	}
	if strings.Contains(out.String(), "@@") {
		t.Errorf("unexpected diff output:\n%s", out.String())
	}
}

func TestRunTask_Unknown(t *testing.T) {
	out := captureOut(t)
	err := RunTask(writeConfig(t, "https://fw.invalid"), "backup")
	if err == nil || !strings.Contains(err.Error(), `no task "backup"`) {
		t.Fatalf("RunTask() error = %v, want unknown task", err)
	}
	if out.Len() != 0 {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestReloadLogLevel(t *testing.T) {
	path := writeConfig(t, "https://fw.example")
	logger := logging.New(logging.Config{Level: logging.LevelInfo, Output: &bytes.Buffer{}})

	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, append([]byte("log_level = \"debug\"\n"), body...), 0644); err != nil {
		t.Fatal(err)
	}
	if err := reloadLogLevel(path, logger); err != nil {
		t.Fatalf("reloadLogLevel() error = %v", err)
	}
	if logger.GetLevel() != logging.LevelDebug {
		t.Errorf("level = %v, want debug", logger.GetLevel())
	}

	if err := os.WriteFile(path, []byte("instance {"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := reloadLogLevel(path, logger); err == nil {
		t.Error("expected error for a broken config file")
	}
	if logger.GetLevel() != logging.LevelDebug {
		t.Error("a failed reload must keep the current level")
	}
}

func TestRunVersion(t *testing.T) {
	out := captureOut(t)
	RunVersion()
	if !strings.HasPrefix(out.String(), "opnwatch ") {
		t.Errorf("unexpected version line %q", out.String())
	}
}
