package musiccache

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestCachePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "music_cache.list")

	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) = %v", err)
	}

	if err := c.Add("Artist - Song", `{"title":"Song"}`); err != nil {
		t.Fatal(err)
	}
	if err := c.Add("Other", "first"); err != nil {
		t.Fatal(err)
	}
	if err := c.Add("Other", "second\nline"); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if v, err := reopened.Get("Artist - Song"); err != nil || v != `{"title":"Song"}` {
		t.Errorf("Get = %q, %v", v, err)
	}
	if v, _ := reopened.Get("Other"); v != "second line" {
		t.Errorf("last write should win, got %q", v)
	}
}

func TestCacheRejectsSeparatorInKey(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "c.list"))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Add("a => b", "x"); err == nil {
		t.Error("expected error")
	}
}
