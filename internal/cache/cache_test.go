package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type payload struct {
	Topic string  `json:"topic"`
	Score float64 `json:"score"`
}

func TestPutGetRoundTrip(t *testing.T) {
	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	want := payload{Topic: "gas fees", Score: 0.9}
	if err := c.Put("abc123", want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var got payload
	if !c.Get("abc123", &got) {
		t.Fatal("Get returned miss immediately after Put")
	}
	if got != want {
		t.Errorf("Get = %+v, want %+v", got, want)
	}
}

func TestGetMissingKey(t *testing.T) {
	c, _ := New(t.TempDir())

	var got payload
	if c.Get("never-stored", &got) {
		t.Error("Get returned hit for key never stored")
	}
}

func TestCorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	c, _ := New(dir)

	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	var got payload
	if c.Get("bad", &got) {
		t.Error("Get returned hit for corrupt entry")
	}
	if c.GetWithin("bad", time.Hour, &got) {
		t.Error("GetWithin returned hit for corrupt entry")
	}
}

func TestTimedEntryWithinMaxAge(t *testing.T) {
	c, _ := New(t.TempDir())

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	defer func() { now = time.Now }()
	now = func() time.Time { return base }

	if err := c.PutTimed("trends", payload{Topic: "restaking"}); err != nil {
		t.Fatalf("PutTimed: %v", err)
	}

	now = func() time.Time { return base.Add(30 * time.Minute) }
	var got payload
	if !c.GetWithin("trends", time.Hour, &got) {
		t.Fatal("GetWithin returned miss before expiry")
	}
	if got.Topic != "restaking" {
		t.Errorf("Topic = %q, want restaking", got.Topic)
	}
}

func TestTimedEntryExpired(t *testing.T) {
	c, _ := New(t.TempDir())

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	defer func() { now = time.Now }()
	now = func() time.Time { return base }

	if err := c.PutTimed("trends", payload{Topic: "restaking"}); err != nil {
		t.Fatalf("PutTimed: %v", err)
	}

	now = func() time.Time { return base.Add(2 * time.Hour) }
	var got payload
	if c.GetWithin("trends", time.Hour, &got) {
		t.Error("GetWithin returned hit after expiry")
	}

	// Zero max age masks the entry even with no elapsed time.
	now = func() time.Time { return base }
	if c.GetWithin("trends", 0, &got) {
		t.Error("GetWithin returned hit with zero max age")
	}

	// The entry is masked, not deleted.
	if _, err := os.Stat(filepath.Join(c.Dir(), "trends.json")); err != nil {
		t.Errorf("expired entry was removed from disk: %v", err)
	}
}

func TestDirDigestStableForUnchangedCorpus(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "alpha")
	writeFile(t, dir, "sub/b.md", "beta")

	first, err := DirDigest(dir)
	if err != nil {
		t.Fatalf("DirDigest: %v", err)
	}
	second, err := DirDigest(dir)
	if err != nil {
		t.Fatalf("DirDigest: %v", err)
	}
	if first != second {
		t.Errorf("digest changed for unchanged corpus: %s vs %s", first, second)
	}
}

func TestDirDigestChangesOnMtimeChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "alpha")

	before, err := DirDigest(dir)
	if err != nil {
		t.Fatalf("DirDigest: %v", err)
	}

	newTime := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, newTime, newTime); err != nil {
		t.Fatal(err)
	}

	after, err := DirDigest(dir)
	if err != nil {
		t.Fatalf("DirDigest: %v", err)
	}
	if before == after {
		t.Error("digest unchanged after touching a member file")
	}
}

func TestDirDigestChangesOnNewFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "alpha")

	before, _ := DirDigest(dir)
	writeFile(t, dir, "b.txt", "beta")
	after, _ := DirDigest(dir)

	if before == after {
		t.Error("digest unchanged after adding a member file")
	}
}

func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
