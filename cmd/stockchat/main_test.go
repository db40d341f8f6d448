package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/stockchat/internal/conversation"
	"github.com/flemzord/stockchat/internal/remote"
	"github.com/flemzord/stockchat/internal/remote/remotetest"
)

// writeConfig writes a client configuration pointing at baseURL with a
// SQLite store in a temp directory and returns its path.
func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "stockchat.yaml")
	content := fmt.Sprintf(`version: "1"
remote:
  base_url: %s
  timeout: 5s
store:
  path: %s
log:
  level: error
`, baseURL, filepath.Join(dir, "chat.db"))
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

// run executes the CLI with args and returns stdout, stderr and the error.
func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	return runContext(t, context.Background(), strings.NewReader(stdin), args...)
}

func runContext(t *testing.T, ctx context.Context, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func TestVersion(t *testing.T) {
	t.Parallel()

	out, _, err := run(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "stockchat dev") {
		t.Errorf("output = %q", out)
	}
}

func TestSend_HistoryAndNew(t *testing.T) {
	t.Parallel()

	srv := remotetest.New(t)
	srv.SetConfig(remote.Configuration{Credential: "k1"})
	cfg := writeConfig(t, srv.URL)

	out, _, err := run(t, "", "--config", cfg, "send", "oi")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(out, "assistente> resposta para: oi") {
		t.Errorf("send output = %q", out)
	}

	if _, _, err := run(t, "", "--config", cfg, "send", "tudo", "bem?"); err != nil {
		t.Fatalf("second send: %v", err)
	}
	chats := srv.Chats()
	if len(chats) != 2 {
		t.Fatalf("chats = %d, want 2", len(chats))
	}
	if chats[1].Session != remotetest.DefaultSession {
		t.Errorf("second send session = %q, want %q", chats[1].Session, remotetest.DefaultSession)
	}
	if chats[1].Message != "tudo bem?" {
		t.Errorf("second send message = %q", chats[1].Message)
	}

	out, _, err = run(t, "", "--config", cfg, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	for _, want := range []string{"você> oi", "assistente> resposta para: tudo bem?"} {
		if !strings.Contains(out, want) {
			t.Errorf("history missing %q:\n%s", want, out)
		}
	}

	_, errOut, err := run(t, "", "--config", cfg, "new")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !strings.Contains(errOut, "Nova conversa iniciada!") {
		t.Errorf("new stderr = %q", errOut)
	}

	out, _, err = run(t, "", "--config", cfg, "history")
	if err != nil {
		t.Fatalf("history after new: %v", err)
	}
	if strings.TrimSpace(out) != "Nenhuma mensagem." {
		t.Errorf("history after new = %q", out)
	}
}

func TestSend_MissingCredential(t *testing.T) {
	t.Parallel()

	srv := remotetest.New(t)
	cfg := writeConfig(t, srv.URL)

	_, errOut, err := run(t, "", "--config", cfg, "--ephemeral", "send", "oi")
	if !errors.Is(err, conversation.ErrMissingCredential) {
		t.Fatalf("err = %v, want ErrMissingCredential", err)
	}
	if !strings.Contains(errOut, "Por favor, configure sua API Key primeiro") {
		t.Errorf("stderr = %q", errOut)
	}
	if n := len(srv.Chats()); n != 0 {
		t.Errorf("chats = %d, want 0", n)
	}
}

func TestSend_RemoteFailure(t *testing.T) {
	t.Parallel()

	srv := remotetest.New(t)
	srv.SetConfig(remote.Configuration{Credential: "k1"})
	srv.ChatFunc = func(remotetest.ChatRequest) remotetest.Response {
		return remotetest.Raw(401, `{"detail":"bad token"}`)
	}
	cfg := writeConfig(t, srv.URL)

	out, errOut, err := run(t, "", "--config", cfg, "--ephemeral", "send", "oi")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(out, conversation.ApologyReply) {
		t.Errorf("stdout = %q, want apology", out)
	}
	if !strings.Contains(errOut, "✗ bad token") {
		t.Errorf("stderr = %q, want bad token notification", errOut)
	}
}

func TestChat_REPL(t *testing.T) {
	t.Parallel()

	srv := remotetest.New(t)
	cfg := writeConfig(t, srv.URL)

	input := strings.Join([]string{
		"oi",
		"/apikey chave-nova",
		"/doc manual de estoque",
		"/save",
		"quantos itens?",
		"/history",
		"/bogus",
		"/quit",
	}, "\n") + "\n"

	out, errOut, err := run(t, input, "--config", cfg, "chat")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	if !strings.Contains(errOut, "Por favor, configure sua API Key primeiro") {
		t.Errorf("expected missing credential warning, stderr = %q", errOut)
	}
	if !strings.Contains(errOut, "Configuração salva com sucesso!") {
		t.Errorf("expected save notification, stderr = %q", errOut)
	}
	if got := srv.Config(); got.Credential != "chave-nova" || got.Documentation != "manual de estoque" {
		t.Errorf("saved config = %+v", got)
	}
	if !strings.Contains(out, "assistente> resposta para: quantos itens?") {
		t.Errorf("stdout missing reply:\n%s", out)
	}
	if !strings.Contains(out, "você> quantos itens?") {
		t.Errorf("stdout missing history:\n%s", out)
	}
	if !strings.Contains(out, "Comando desconhecido: /bogus") {
		t.Errorf("stdout missing unknown command:\n%s", out)
	}
	if n := len(srv.Chats()); n != 1 {
		t.Errorf("chats = %d, want 1", n)
	}
}

func TestConfigSet(t *testing.T) {
	t.Parallel()

	srv := remotetest.New(t)
	srv.SetConfig(remote.Configuration{Credential: "old-key", Documentation: "old doc"})
	cfg := writeConfig(t, srv.URL)

	_, errOut, err := run(t, "", "--config", cfg, "--ephemeral", "config", "set", "--doc", "novo manual")
	if err != nil {
		t.Fatalf("config set: %v", err)
	}
	if got := srv.Config(); got.Credential != "old-key" || got.Documentation != "novo manual" {
		t.Errorf("saved config = %+v", got)
	}
	if !strings.Contains(errOut, "Configuração salva com sucesso!") {
		t.Errorf("stderr = %q", errOut)
	}

	if _, _, err := run(t, "", "--config", cfg, "--ephemeral", "config", "set"); err == nil {
		t.Error("expected error when no flag is given")
	}
}

func TestConfigShow_RedactsCredential(t *testing.T) {
	t.Parallel()

	srv := remotetest.New(t)
	srv.SetConfig(remote.Configuration{Credential: "supersecret-key", Documentation: "manual"})
	cfg := writeConfig(t, srv.URL)

	out, _, err := run(t, "", "--config", cfg, "--ephemeral", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "supersecret-key") {
		t.Errorf("credential leaked:\n%s", out)
	}
	for _, want := range []string{"***REDACTED***", "doc: manual", srv.URL, "messages: 0"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigShow_RedactsBaseURLPassword(t *testing.T) {
	t.Parallel()

	srv := remotetest.New(t)
	srv.SetConfig(remote.Configuration{Credential: "k1"})
	cfg := writeConfig(t, strings.Replace(srv.URL, "http://", "http://ops:hunter22@", 1))

	if _, _, err := run(t, "", "--config", cfg, "send", "oi"); err != nil {
		t.Fatalf("send: %v", err)
	}

	out, _, err := run(t, "", "--config", cfg, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "hunter22") {
		t.Errorf("base_url password leaked:\n%s", out)
	}
	for _, want := range []string{"ops:***REDACTED***@", "session: " + remotetest.DefaultSession, "messages: 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestChat_ReturnsWhenContextCancelled(t *testing.T) {
	t.Parallel()

	srv := remotetest.New(t)
	cfg := writeConfig(t, srv.URL)

	// The pipe is never written, so the prompt would block forever on input.
	stdin, stdinWriter := io.Pipe()
	t.Cleanup(func() { _ = stdinWriter.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() {
		_, _, err := runContext(t, ctx, stdin, "--config", cfg, "--ephemeral", "chat")
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("chat: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("chat did not return after cancellation")
	}
}

func TestConfigCheck(t *testing.T) {
	t.Parallel()

	cfg := writeConfig(t, "http://localhost:8000")
	out, _, err := run(t, "", "config", "check", cfg)
	if err != nil {
		t.Fatalf("config check: %v", err)
	}
	if !strings.Contains(out, "Configuration OK") {
		t.Errorf("output = %q", out)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("version: \"2\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := run(t, "", "config", "check", bad); err == nil {
		t.Error("expected validation error")
	}
}
