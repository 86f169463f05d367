package lyrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lrcsync/pkg/music"
)

type mockAI struct {
	reply string
	err   error
	calls int
}

func (m *mockAI) Name() string { return "mock" }

func (m *mockAI) HandleText(ctx context.Context, msg string) (string, error) {
	m.calls++
	return m.reply, m.err
}

type mockManager struct {
	lyrics string
	err    error
	calls  int
	title  string
	artist string
}

func (m *mockManager) SearchSong(ctx context.Context, title, artist string) (string, error) {
	return "", nil
}

func (m *mockManager) GetLyrics(ctx context.Context, songID string) (string, error) {
	return "", nil
}

func (m *mockManager) GetProviderName() string { return "mock" }

func (m *mockManager) GetLyricsByInfo(ctx context.Context, title, artist string, duration float64) (string, error) {
	m.calls++
	m.title, m.artist = title, artist
	return m.lyrics, m.err
}

type memCache map[string]string

func (c memCache) Get(ctx context.Context, key string) (string, error) {
	return c[key], nil
}

func (c memCache) SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	c[key] = value.(string)
	return nil
}

type memSongs map[string]string

func (s memSongs) Get(key string) (string, error) {
	v, ok := s[key]
	if !ok {
		return "", errors.New("miss")
	}
	return v, nil
}

func (s memSongs) Add(key, value string) error {
	s[key] = value
	return nil
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		artist string
		title  string
	}{
		{"artist and title", "Adele - Hello.mp3", "Adele", "Hello"},
		{"only first separator", "A - B - C.flac", "A", "B - C"},
		{"no separator", "song.wav", "", "song"},
		{"path", "/music/Artist - Song.ogg", "Artist", "Song"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitName(tt.input)
			if got.Artist != tt.artist || got.Title != tt.title {
				t.Errorf("SplitName(%q) = %+v", tt.input, got)
			}
		})
	}
}

func TestResolveSong(t *testing.T) {
	t.Run("AI result is cached", func(t *testing.T) {
		aiClient := &mockAI{reply: "```json\n{\"is_song\": true, \"title\": \"Hello\", \"artist\": \"Adele\"}\n```"}
		songs := memSongs{}
		p := NewProvider(Options{AI: aiClient, Songs: songs})

		for i := 0; i < 2; i++ {
			info, err := p.ResolveSong(context.Background(), "adele_hello_official.mp3")
			if err != nil {
				t.Fatal(err)
			}
			if info.Title != "Hello" || info.Artist != "Adele" {
				t.Errorf("info = %+v", info)
			}
		}
		if aiClient.calls != 1 {
			t.Errorf("AI called %d times, want 1", aiClient.calls)
		}
	})

	t.Run("not a song", func(t *testing.T) {
		p := NewProvider(Options{AI: &mockAI{reply: `{"is_song": false}`}})
		if _, err := p.ResolveSong(context.Background(), "podcast.mp3"); !errors.Is(err, ErrNotASong) {
			t.Errorf("err = %v, want ErrNotASong", err)
		}
	})

	t.Run("bad AI reply falls back to split", func(t *testing.T) {
		p := NewProvider(Options{AI: &mockAI{reply: "I think it is Hello"}})
		info, err := p.ResolveSong(context.Background(), "Adele - Hello.mp3")
		if err != nil {
			t.Fatal(err)
		}
		if info.Title != "Hello" || info.Artist != "Adele" {
			t.Errorf("info = %+v", info)
		}
	})

	t.Run("empty name", func(t *testing.T) {
		if _, err := NewProvider(Options{}).ResolveSong(context.Background(), "  "); err == nil {
			t.Error("expected error")
		}
	})
}

func TestImport(t *testing.T) {
	dir := t.TempDir()
	manager := &mockManager{lyrics: "[ar:Adele]\n[00:01.123]Hello\n[00:05.5]It's me"}
	redis := memCache{}
	p := NewProvider(Options{CacheDir: dir, Music: manager, Redis: redis, RedisTTL: time.Hour})

	text, err := p.Import(context.Background(), "Adele - Hello.mp3", 0)
	if err != nil {
		t.Fatal(err)
	}
	want := "[ar:Adele]\n[00:01.12] Hello\n[00:05.50] It's me"
	if text != want {
		t.Errorf("Import() = %q, want %q", text, want)
	}
	if manager.title != "Hello" || manager.artist != "Adele" {
		t.Errorf("manager got %q/%q", manager.title, manager.artist)
	}

	if got := redis[redisKeyPrefix+"Adele - Hello"]; got != want {
		t.Errorf("redis cache = %q", got)
	}
	cached, err := os.ReadFile(filepath.Join(dir, "Hello-Adele.lrc"))
	if err != nil {
		t.Fatal(err)
	}
	if string(cached) != want {
		t.Errorf("file cache = %q", cached)
	}

	// 第二次命中缓存
	if _, err := p.Import(context.Background(), "Adele - Hello.mp3", 0); err != nil {
		t.Fatal(err)
	}
	if manager.calls != 1 {
		t.Errorf("manager called %d times, want 1", manager.calls)
	}
}

func TestImportProviderError(t *testing.T) {
	p := NewProvider(Options{Music: &mockManager{err: errors.New("boom")}})
	if _, err := p.Import(context.Background(), "x - y", 0); err == nil {
		t.Error("expected error")
	}
	if _, err := NewProvider(Options{}).Import(context.Background(), "x - y", 0); !errors.Is(err, music.ErrNoProviders) {
		t.Errorf("err = %v, want ErrNoProviders", err)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"three digit fraction", "[01:02.346]line", "[01:02.35] line"},
		{"no fraction", "[00:07]line", "[00:07.00] line"},
		{"one digit fraction", "[00:07.5] line", "[00:07.50] line"},
		{"empty timed line dropped", "[00:01.00]\n[00:02.00]x", "[00:02.00] x"},
		{"metadata kept", "[ti:Song]\n[00:01.00]x", "[ti:Song]\n[00:01.00] x"},
		{"plain text kept", "verse\n\nchorus", "verse\nchorus"},
		{"crlf", "[00:01.00]a\r\n[00:02.00]b", "[00:01.00] a\n[00:02.00] b"},
		{
			"repeated tags expand and sort",
			"[00:10.00][00:30.00]chorus\n[00:20.00]verse",
			"[00:10.00] chorus\n[00:20.00] verse\n[00:30.00] chorus",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
