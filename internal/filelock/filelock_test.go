package filelock

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
)

func TestWriteFileReplacesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.md")

	if err := WriteFile(path, []byte("one")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteFile(path, []byte("two")); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "two" {
		t.Fatalf("expected two, got %q", data)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected no leftover temp files, got %d entries", len(entries))
	}
}

func TestWithSerializesReadModifyWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counter.txt")
	if err := WriteFile(path, []byte("")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := With(path, func() error {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				return WriteFile(path, append(data, []byte(strconv.Itoa(i)+"\n")...))
			})
			if err != nil {
				t.Errorf("with: %v", err)
			}
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 20 {
		t.Fatalf("expected 20 lines, got %d", len(lines))
	}
}

func TestLockPath(t *testing.T) {
	got := LockPath("/p/todo/terminal-1.md")
	if got != "/p/todo/.terminal-1.md.lock" {
		t.Fatalf("unexpected lock path %s", got)
	}
}
