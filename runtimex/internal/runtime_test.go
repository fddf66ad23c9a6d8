package internal

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"go.eggybyte.com/orchid/core/log"
)

func TestRuntime_StartServeStop(t *testing.T) {
	rt := NewRuntime(log.Nop(), time.Second)
	rt.AddServer("hello", &http.Server{
		Addr: "127.0.0.1:0",
		Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			io.WriteString(w, "hi")
		}),
	})
	rt.AddServer("skipped", &http.Server{})

	if err := rt.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	addrs := rt.Addrs()
	if len(addrs) != 1 || addrs["hello"] == "" {
		t.Fatalf("Addrs() = %v", addrs)
	}

	resp, err := http.Get("http://" + addrs["hello"])
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "hi" {
		t.Errorf("body = %q, want hi", body)
	}

	if err := rt.Stop(context.Background()); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if _, err := http.Get("http://" + addrs["hello"]); err == nil {
		t.Error("server still answering after Stop")
	}
}

func TestRuntime_StartAddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	rt := NewRuntime(log.Nop(), time.Second)
	rt.AddServer("first", &http.Server{Addr: "127.0.0.1:0"})
	rt.AddServer("taken", &http.Server{Addr: ln.Addr().String()})

	if err := rt.Start(context.Background()); err == nil {
		t.Fatal("Start() error = nil, want listen failure")
	}
}
