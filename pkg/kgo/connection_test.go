package kgo

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestConnectionSendSyncRoundTrip(t *testing.T) {
	addr := startFakeBroker(t, func(conn net.Conn) {
		defer conn.Close()
		serveWithAPIVersions(t, conn, func(req fakeRequest, conn net.Conn) {
			writeFakeResponse(conn, req.corrID, []byte("echo:"+string(req.body)))
		})
	})
	host, port := fakeBrokerHostPort(t, addr)

	c, err := Start(context.Background(), host, port, testConfig(t))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	resp, err := c.SendSync(context.Background(), Request{
		Ref: "probe", API: 99, Version: 0, Body: []byte("ping"),
	}, time.Second)
	if err != nil {
		t.Fatalf("SendSync: %v", err)
	}
	if string(resp.Message) != "echo:ping" {
		t.Errorf("SendSync() message = %q, want %q", resp.Message, "echo:ping")
	}
	if resp.Ref != "probe" {
		t.Errorf("SendSync() ref = %v, want probe", resp.Ref)
	}
}

func TestConnectionSendAsyncNoAck(t *testing.T) {
	gotCh := make(chan struct{}, 1)
	addr := startFakeBroker(t, func(conn net.Conn) {
		defer conn.Close()
		serveWithAPIVersions(t, conn, func(req fakeRequest, conn net.Conn) {
			gotCh <- struct{}{}
			// no_ack: broker never replies, matching a produce with
			// acks=0.
		})
	})
	host, port := fakeBrokerHostPort(t, addr)

	c, err := Start(context.Background(), host, port, testConfig(t))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	if err := c.SendAsync(Request{API: 0, Version: 0, NoAck: true, Body: []byte("fire")}); err != nil {
		t.Fatalf("SendAsync: %v", err)
	}

	select {
	case <-gotCh:
	case <-time.After(time.Second):
		t.Fatal("broker never observed the no_ack request")
	}
}

func TestConnectionRequestTimeoutKillsConnection(t *testing.T) {
	addr := startFakeBroker(t, func(conn net.Conn) {
		defer conn.Close()
		serveWithAPIVersions(t, conn, func(req fakeRequest, conn net.Conn) {
			// Never respond; the connection's liveness check must fire.
		})
	})
	host, port := fakeBrokerHostPort(t, addr)

	cfg := testConfig(t, RequestTimeout(1*time.Second))
	c, err := Start(context.Background(), host, port, cfg)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	_, err = c.SendSync(context.Background(), Request{API: 0, Version: 0, Body: []byte("x")}, 5*time.Second)
	if err == nil {
		t.Fatal("SendSync() = nil error, want timeout-induced failure")
	}
}

func TestConnectionDebugInfoReportsPending(t *testing.T) {
	block := make(chan struct{})
	addr := startFakeBroker(t, func(conn net.Conn) {
		defer conn.Close()
		serveWithAPIVersions(t, conn, func(req fakeRequest, conn net.Conn) {
			<-block
		})
	})
	host, port := fakeBrokerHostPort(t, addr)

	c, err := Start(context.Background(), host, port, testConfig(t))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { close(block); c.Stop() }()

	go c.SendSync(context.Background(), Request{API: 0, Version: 0, Body: []byte("x")}, 5*time.Second)

	var info DebugInfo
	for i := 0; i < 50; i++ {
		info = c.SetDebug(true)
		if info.PendingCount > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if info.PendingCount == 0 {
		t.Fatalf("DebugInfo.PendingCount = 0, want > 0 while a request is outstanding")
	}
	if info.Transport != "plain" {
		t.Errorf("DebugInfo.Transport = %q, want plain", info.Transport)
	}
}
