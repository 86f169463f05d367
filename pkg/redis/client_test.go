package redis

import (
	"context"
	"testing"
	"time"
)

func TestNewClientUnreachable(t *testing.T) {
	// 端口 1 上不会有 redis
	_, err := NewClient(context.Background(), Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond})
	if err == nil {
		t.Fatal("expected connection error")
	}
}

func TestKeyPrefix(t *testing.T) {
	c := &Client{prefix: "lrcsync:"}
	if got := c.key("lyrics:a - b"); got != "lrcsync:lyrics:a - b" {
		t.Errorf("key = %q", got)
	}
}
