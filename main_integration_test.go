package main

import (
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func buildTestBinary(t *testing.T) string {
	binName := "totempark_it_bin"
	if runtime.GOOS == "windows" {
		binName += ".exe"
	}
	bin := filepath.Join(t.TempDir(), binName)
	cmd := exec.Command("go", "build", "-o", bin, ".")
	cmd.Env = os.Environ()
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to build binary: %v\n%s", err, string(out))
	}
	return bin
}

func freeAddr(t *testing.T) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve a port: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

// TestServeMissingSettings makes sure serve refuses to start without secrets.
func TestServeMissingSettings(t *testing.T) {
	bin := buildTestBinary(t)
	cmd := exec.Command(bin, "serve")
	cmd.Env = append(os.Environ(),
		"DATABASE_PATH="+filepath.Join(t.TempDir(), "totempark.db"),
		"SECRET_KEY=", "TOTEM_API_KEY=", "MP_APP_ID=", "MP_SECRET_KEY=",
	)
	err := cmd.Run()
	exitErr, ok := err.(*exec.ExitError)
	if !ok || exitErr.ExitCode() != 1 {
		t.Fatalf("expected exit code 1, got %v", err)
	}
}

// TestGracefulInterrupt starts the server, waits for it to answer /healthz,
// then sends SIGINT and expects a clean exit.
func TestGracefulInterrupt(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("SIGINT cannot be sent to a process on windows")
	}
	bin := buildTestBinary(t)
	addr := freeAddr(t)

	cmd := exec.Command(bin, "serve", "--addr", addr)
	cmd.Env = append(os.Environ(),
		"DATABASE_PATH="+filepath.Join(t.TempDir(), "totempark.db"),
		"SECRET_KEY=test-secret",
		"TOTEM_API_KEY=test-api-key",
		"MP_APP_ID=app-id",
		"MP_SECRET_KEY=app-secret",
		"REDIS_URL=",
	)
	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start binary: %v", err)
	}

	healthy := false
	for deadline := time.Now().Add(5 * time.Second); time.Now().Before(deadline); {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			healthy = resp.StatusCode == http.StatusOK
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if !healthy {
		_ = cmd.Process.Kill()
		t.Fatal("server did not become healthy")
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		t.Fatalf("failed to send interrupt: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean exit after SIGINT, got %v", err)
		}
	case <-time.After(3 * time.Second):
		_ = cmd.Process.Kill()
		t.Fatal("process did not exit within 3s after SIGINT")
	}
}
