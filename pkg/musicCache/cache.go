package musiccache

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	kvSep    = " => "
	kvFormat = "%s => %s\n"
)

// ErrNotFound 缓存未命中
var ErrNotFound = errors.New("not found")

// Cache 追加写的键值缓存，每行一条 "key => value"，同一个键以最后一次写入为准
type Cache struct {
	path  string
	mu    sync.Mutex
	cache map[string]string
}

// Open 打开（必要时创建）缓存文件
func Open(path string) (*Cache, error) {
	c := &Cache{path: path, cache: make(map[string]string)}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open cache file %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), kvSep)
		if !ok || key == "" {
			continue
		}
		c.cache[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cache file %s: %w", path, err)
	}
	return c, nil
}

// Add 写入缓存；键和值中的换行会被替换成空格
func (c *Cache) Add(key, value string) error {
	key, value = oneLine(key), oneLine(value)
	if strings.Contains(key, kvSep) {
		return fmt.Errorf("invalid cache key %q", key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.cache[key]; ok && old == value {
		return nil
	}
	c.cache[key] = value

	f, err := os.OpenFile(c.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open cache file %s: %w", c.path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, kvFormat, key, value); err != nil {
		return fmt.Errorf("failed to append to cache file %s: %w", c.path, err)
	}
	return nil
}

// Get 读取缓存
func (c *Cache) Get(key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.cache[oneLine(key)]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func oneLine(s string) string {
	return strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(s))
}
