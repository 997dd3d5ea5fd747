package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestNewPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := New(context.Background(), Options{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer client.Close()
	if got := (Options{Addr: mr.Addr(), DB: 2}).AsynqOpt(); got.Addr != mr.Addr() || got.DB != 2 {
		t.Fatalf("unexpected asynq options: %+v", got)
	}
}

func TestNewFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	if _, err := New(context.Background(), Options{Addr: addr}); err == nil {
		t.Fatalf("expected ping error")
	}
}
