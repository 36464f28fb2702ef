package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogFileRotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "agent.log")
	l, err := OpenLogFile(path, 32, 2)
	if err != nil {
		t.Fatalf("OpenLogFile: %v", err)
	}
	defer l.Close()

	records := []string{
		"first record 0123456789\n",
		"second record 012345678\n",
		"third record 0123456789\n",
		"fourth record 012345678\n",
	}
	for _, r := range records {
		if _, err := l.Write([]byte(r)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	want := map[string]string{
		path:        records[3],
		path + ".1": records[2],
		path + ".2": records[1],
	}
	for p, content := range want {
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("ReadFile(%s): %v", p, err)
		}
		if string(data) != content {
			t.Errorf("%s = %q, want %q", filepath.Base(p), data, content)
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Errorf("expected at most 2 rotated files, found .3 (err=%v)", err)
	}
}

func TestLogFileAppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.log")
	if err := os.WriteFile(path, []byte("earlier\n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	l, err := OpenLogFile(path, 0, 0)
	if err != nil {
		t.Fatalf("OpenLogFile: %v", err)
	}
	l.Write([]byte("later\n"))
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), "earlier\n") || !strings.HasSuffix(string(data), "later\n") {
		t.Fatalf("log = %q", data)
	}
	if _, err := l.Write([]byte("x")); err == nil {
		t.Fatalf("Write after Close succeeded")
	}
}
