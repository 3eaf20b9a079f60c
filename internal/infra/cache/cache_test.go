package cache_test

import (
	"testing"
	"time"

	"github.com/classforge/feeplan-api/internal/domain"
	"github.com/classforge/feeplan-api/internal/infra/cache"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[[]domain.FeeType](5 * time.Minute)

	c.Set("fee_types:active", []domain.FeeType{
		{ID: "tuition", Name: "Tuition", Active: true},
		{ID: "transport", Name: "Transport", Active: true},
	})

	got, ok := c.Get("fee_types:active")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if len(got) != 2 || got[0].ID != "tuition" {
		t.Errorf("unexpected cached catalog: %+v", got)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[[]domain.FeeType](5 * time.Minute)

	if _, ok := c.Get("fee_types:active"); ok {
		t.Fatal("expected cache miss for unset key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[[]domain.FeeType](50 * time.Millisecond)

	c.Set("fee_types:active", []domain.FeeType{{ID: "tuition"}})
	time.Sleep(100 * time.Millisecond)

	if _, ok := c.Get("fee_types:active"); ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[[]domain.FeeType](5 * time.Minute)

	c.Set("fee_types:active", []domain.FeeType{{ID: "tuition"}})
	c.Delete("fee_types:active")

	if _, ok := c.Get("fee_types:active"); ok {
		t.Fatal("expected key to be deleted")
	}
}
