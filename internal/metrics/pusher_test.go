package metrics

import (
	"context"
	"io"
	"net"
	"testing"
	"time"
)

func TestLineString(t *testing.T) {
	tests := []struct {
		line Line
		want string
	}{
		{Line{"btc_usd", 43210.5, time.Unix(1700000000, 0)}, "btc_usd 43210.5 1700000000\n"},
		{Line{"btc_usd_plin_avg", 50000, time.Unix(1700000060, 0)}, "btc_usd_plin_avg 50000 1700000060\n"},
	}
	for _, tt := range tests {
		if got := tt.line.String(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}

func TestPush(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- string(data)
	}()

	p := NewPusher(ln.Addr().String(), time.Second)
	ts := time.Unix(1700000000, 0)
	err = p.Push(context.Background(),
		Line{Name: "btc_usd_seasonal_avg", Value: 1.25, Time: ts},
		Line{Name: "btc_usd_seasonal_median", Value: 2, Time: ts},
	)
	if err != nil {
		t.Fatalf("push: %v", err)
	}

	select {
	case got := <-received:
		want := "btc_usd_seasonal_avg 1.25 1700000000\nbtc_usd_seasonal_median 2 1700000000\n"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("collector received nothing")
	}
}

func TestPush_NothingToSend(t *testing.T) {
	p := NewPusher("127.0.0.1:1", time.Second)
	if err := p.Push(context.Background()); err != nil {
		t.Errorf("empty push should not dial: %v", err)
	}
}

func TestPush_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	p := NewPusher(addr, time.Second)
	if err := p.Push(context.Background(), Line{Name: "x", Value: 1, Time: time.Now()}); err == nil {
		t.Error("expected dial error")
	}
}
