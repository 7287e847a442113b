package progress

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/desertthunder/prism/internal/shared"
)

func TestTracker(t *testing.T) {
	t.Run("missing file starts empty", func(t *testing.T) {
		tr, err := Open(filepath.Join(t.TempDir(), "progress.json"))
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer tr.Close()

		if tr.Len() != 0 {
			t.Errorf("expected empty tracker, got %d", tr.Len())
		}
		if _, err := os.Stat(tr.Path()); !os.IsNotExist(err) {
			t.Errorf("opening should not create the file, stat err=%v", err)
		}
	})

	t.Run("Record persists in the documented shape", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "progress.json")
		tr, err := Open(path)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}

		if err := tr.Record("https://x.substack.com/p/a", "PL1"); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		if err := tr.Record("https://x.substack.com/p/b", "PL2"); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		tr.Close()

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		var raw map[string]map[string]string
		if err := json.Unmarshal(data, &raw); err != nil {
			t.Fatalf("progress file is not valid JSON: %v", err)
		}
		if raw["processed_playlists"]["https://x.substack.com/p/b"] != "PL2" {
			t.Errorf("unexpected file contents %s", data)
		}

		reopened, err := Open(path)
		if err != nil {
			t.Fatalf("reopen failed: %v", err)
		}
		defer reopened.Close()

		if id, ok := reopened.Lookup("https://x.substack.com/p/a"); !ok || id != "PL1" {
			t.Errorf("expected PL1 after reopen, got %q ok=%v", id, ok)
		}
		if urls := reopened.URLs(); len(urls) != 2 || urls[0] != "https://x.substack.com/p/a" {
			t.Errorf("unexpected URLs %v", urls)
		}
	})

	t.Run("second open fails fast", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "progress.json")
		first, err := Open(path)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}

		if _, err := Open(path); !errors.Is(err, shared.ErrLocked) {
			t.Fatalf("expected ErrLocked, got %v", err)
		}

		first.Close()
		second, err := Open(path)
		if err != nil {
			t.Fatalf("Open after close failed: %v", err)
		}
		second.Close()
	})

	t.Run("read-only never writes", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "progress.json")
		tr, err := OpenReadOnly(path)
		if err != nil {
			t.Fatalf("OpenReadOnly failed: %v", err)
		}

		if err := tr.Record("https://x.substack.com/p/a", "DRY"); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		if _, ok := tr.Lookup("https://x.substack.com/p/a"); !ok {
			t.Error("read-only record should be visible in memory")
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("read-only tracker wrote to disk, stat err=%v", err)
		}
		if err := tr.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "progress.json")
		if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
			t.Fatalf("write failed: %v", err)
		}

		if _, err := Open(path); err == nil {
			t.Fatal("expected parse error")
		}
		// the failed open must release its lock
		if tr, err := OpenReadOnly(path); err == nil {
			tr.Close()
			t.Fatal("expected parse error from read-only open too")
		}
		if err := os.WriteFile(path, []byte(`{"processed_playlists":{}}`), 0644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		tr, err := Open(path)
		if err != nil {
			t.Fatalf("lock should have been released after the failed open: %v", err)
		}
		tr.Close()
	})
}
