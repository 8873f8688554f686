package supervisor

import (
	"os"
	"path/filepath"
	"testing"
)

func TestKillByClientClearsMalformedPIDFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.pid")
	if err := os.WriteFile(path, []byte("not-a-pid"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := KillByClient(path, "127.0.0.1", func(pid int) error { return nil })
	if err != ErrNoSuchProcess {
		// The argv scan over real host processes is environment-
		// dependent; a real match is acceptable, but the malformed
		// file must be gone either way.
		t.Logf("KillByClient returned %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Errorf("malformed pid file should have been removed")
	}
}

func TestArgvHasHostMatchesFlagAndEquals(t *testing.T) {
	if !argvHasHost([]string{"llama-server", "--host", "0.0.0.0"}, "0.0.0.0") {
		t.Error("expected --host flag match")
	}
	if !argvHasHost([]string{"llama-server", "-h", "0.0.0.0"}, "0.0.0.0") {
		t.Error("expected -h flag match")
	}
	if !argvHasHost([]string{"llama-server", "--host=0.0.0.0"}, "0.0.0.0") {
		t.Error("expected --host= match")
	}
	if argvHasHost([]string{"llama-server", "--host", "1.2.3.4"}, "0.0.0.0") {
		t.Error("unexpected match on different host")
	}
}
