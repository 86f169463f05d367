package music

import (
	"context"
	"errors"
	"testing"
)

// mockProvider 模拟音乐提供商
type mockProvider struct {
	name       string
	searchFail bool
	lyricsFail bool
	searches   int
}

func (m *mockProvider) SearchSong(ctx context.Context, title, artist string) (string, error) {
	m.searches++
	if m.searchFail {
		return "", errors.New("search failed")
	}
	return "mock-song-id", nil
}

func (m *mockProvider) GetLyrics(ctx context.Context, songID string) (string, error) {
	if m.lyricsFail {
		return "", errors.New("lyrics failed")
	}
	return "[00:10.00]Test lyrics", nil
}

func (m *mockProvider) GetProviderName() string {
	return m.name
}

// durationProvider 模拟支持时长匹配的提供商
type durationProvider struct {
	mockProvider
	gotDuration float64
}

func (d *durationProvider) GetLyricsByInfo(ctx context.Context, title, artist string, duration float64) (string, error) {
	d.gotDuration = duration
	return "[00:01.00]by duration", nil
}

func TestGetLyricsByInfo(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		manager := NewManager([]MusicAPI{&mockProvider{name: "TestProvider"}})
		lyrics, err := manager.GetLyricsByInfo(context.Background(), "Test Song", "Test Artist", 0)
		if err != nil {
			t.Fatalf("Expected success, got error: %v", err)
		}
		if lyrics != "[00:10.00]Test lyrics" {
			t.Errorf("Expected '[00:10.00]Test lyrics', got '%s'", lyrics)
		}
	})

	t.Run("FailoverSuccess", func(t *testing.T) {
		failProvider := &mockProvider{name: "FailProvider", searchFail: true}
		successProvider := &mockProvider{name: "SuccessProvider"}

		manager := NewManager([]MusicAPI{failProvider, successProvider})
		lyrics, err := manager.GetLyricsByInfo(context.Background(), "Test Song", "Test Artist", 0)
		if err != nil {
			t.Fatalf("Expected success with failover, got error: %v", err)
		}
		if lyrics != "[00:10.00]Test lyrics" {
			t.Errorf("Expected '[00:10.00]Test lyrics', got '%s'", lyrics)
		}
	})

	t.Run("AllFail", func(t *testing.T) {
		manager := NewManager([]MusicAPI{
			&mockProvider{name: "FailProvider1", searchFail: true},
			&mockProvider{name: "FailProvider2", lyricsFail: true},
		})
		_, err := manager.GetLyricsByInfo(context.Background(), "Test Song", "Test Artist", 0)
		if err == nil {
			t.Error("Expected error when all providers fail, got success")
		}
	})

	t.Run("DurationMatcher", func(t *testing.T) {
		provider := &durationProvider{mockProvider: mockProvider{name: "Duration"}}
		manager := NewManager([]MusicAPI{provider})

		lyrics, err := manager.GetLyricsByInfo(context.Background(), "Song", "Artist", 201)
		if err != nil {
			t.Fatal(err)
		}
		if lyrics != "[00:01.00]by duration" || provider.gotDuration != 201 {
			t.Errorf("got %q with duration %v", lyrics, provider.gotDuration)
		}
		if provider.searches != 0 {
			t.Errorf("search should be skipped when duration is known, got %d searches", provider.searches)
		}
	})

	t.Run("NoProviders", func(t *testing.T) {
		_, err := NewManager(nil).GetLyricsByInfo(context.Background(), "Song", "Artist", 0)
		if !errors.Is(err, ErrNoProviders) {
			t.Errorf("err = %v, want ErrNoProviders", err)
		}
	})
}

func TestManagerInterfaceCompliance(t *testing.T) {
	manager := NewManager([]MusicAPI{&mockProvider{name: "TestProvider"}})

	var _ MusicAPI = manager
	var _ MusicManager = manager

	expected := "Manager[Primary: TestProvider]"
	if name := manager.GetProviderName(); name != expected {
		t.Errorf("Expected provider name '%s', got '%s'", expected, name)
	}
}

func TestCreateManager(t *testing.T) {
	manager, err := CreateManager([]string{"lrclib", "bogus", "163"})
	if err != nil {
		t.Fatal(err)
	}
	names := manager.GetProviderNames()
	if len(names) != 2 || names[0] != "LRCLib" || names[1] != "NetEase" {
		t.Errorf("providers = %v", names)
	}

	if _, err := CreateManager([]string{"bogus"}); !errors.Is(err, ErrNoProviders) {
		t.Errorf("err = %v, want ErrNoProviders", err)
	}
}

func TestSongInfoQuery(t *testing.T) {
	if got := (SongInfo{Title: "Song", Artist: "Artist"}).Query(); got != "Artist - Song" {
		t.Errorf("Query() = %q", got)
	}
	if got := (SongInfo{Title: "Song"}).Query(); got != "Song" {
		t.Errorf("Query() = %q", got)
	}
}
