package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestReportCache_NilClientIsDisabled(t *testing.T) {
	c := NewReportCache(nil, 0)
	if c.ttl != time.Minute {
		t.Errorf("default ttl = %s", c.ttl)
	}
	var dst map[string]string
	ok, err := c.Get(context.Background(), "report:financial:x", &dst)
	if ok || err != nil {
		t.Errorf("Get = %v, %v; want miss", ok, err)
	}
	if err := c.Set(context.Background(), "report:financial:x", map[string]string{"a": "b"}); err != nil {
		t.Errorf("Set: %v", err)
	}
}

func TestReportCache_UnreachableServerReturnsError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond, MaxRetries: -1})
	defer client.Close()
	c := NewReportCache(client, time.Second)

	var dst map[string]string
	ok, err := c.Get(context.Background(), "report:financial:x", &dst)
	if ok || err == nil {
		t.Errorf("Get = %v, %v; want error", ok, err)
	}
}

func TestConnect_BadURL(t *testing.T) {
	if _, err := Connect(context.Background(), "://nope"); err == nil {
		t.Error("expected parse error")
	}
}
