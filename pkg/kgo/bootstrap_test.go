package kgo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/brokercore/kpro/pkg/kmsg"
)

func trivialFakeBroker(t *testing.T) string {
	return startFakeBroker(t, func(conn net.Conn) {
		defer conn.Close()
		serveWithAPIVersions(t, conn, func(req fakeRequest, conn net.Conn) {})
	})
}

func TestConnectAnySkipsDeadEndpoints(t *testing.T) {
	good := trivialFakeBroker(t)
	host, port := fakeBrokerHostPort(t, good)

	endpoints := []Endpoint{
		{Host: "127.0.0.1", Port: 1}, // nothing listens here
		{Host: host, Port: port},
	}

	c, err := connectAny(context.Background(), endpoints, testConfig(t))
	if err != nil {
		t.Fatalf("connectAny: %v", err)
	}
	defer c.Stop()

	if c.Addr() != net.JoinHostPort(host, strconv.Itoa(int(port))) {
		t.Errorf("connectAny() connected to %s, want %s:%d", c.Addr(), host, port)
	}
}

func TestConnectAnyAggregatesFailures(t *testing.T) {
	endpoints := []Endpoint{
		{Host: "127.0.0.1", Port: 1},
		{Host: "127.0.0.1", Port: 2},
	}
	_, err := connectAny(context.Background(), endpoints, testConfig(t))
	var target *BootstrapError
	if !errors.As(err, &target) {
		t.Fatalf("connectAny() err = %v, want *BootstrapError", err)
	}
	if len(target.Attempts) != 2 {
		t.Errorf("BootstrapError.Attempts = %d, want 2", len(target.Attempts))
	}
}

// TestWithConnectionIgnoresCallerContextCancellation asserts spec.md
// §4.8's nolink=true requirement for the scratch connection
// with_connection opens: cancelling the caller's ctx mid-flight must
// not tear the scratch connection down, since it is life-cycle
// independent of the caller and is only ever stopped explicitly.
func TestWithConnectionIgnoresCallerContextCancellation(t *testing.T) {
	unblock := make(chan struct{})
	addr := startFakeBroker(t, func(conn net.Conn) {
		defer conn.Close()
		serveWithAPIVersions(t, conn, func(req fakeRequest, conn net.Conn) {
			<-unblock
		})
	})
	host, port := fakeBrokerHostPort(t, addr)

	ctx, cancel := context.WithCancel(context.Background())
	defer close(unblock)

	_, err := withConnection(ctx, []Endpoint{{Host: host, Port: port}}, testConfig(t), func(c *Connection) (struct{}, error) {
		cancel()
		// Give a caller-linked connection's ctx-watcher goroutine time
		// to act, were one wrongly started for this scratch connection.
		time.Sleep(50 * time.Millisecond)
		if err := c.Err(); err != nil {
			return struct{}{}, fmt.Errorf("scratch connection died after caller ctx cancellation: %v", err)
		}
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestConnectPartitionLeaderReconnectsToLeader(t *testing.T) {
	leaderAddr := trivialFakeBroker(t)
	leaderHost, leaderPort := fakeBrokerHostPort(t, leaderAddr)

	bootstrapAddr := startFakeBroker(t, func(conn net.Conn) {
		defer conn.Close()
		serveWithAPIVersions(t, conn, func(req fakeRequest, conn net.Conn) {
			if req.api != kmsg.MetadataKey {
				t.Errorf("unexpected api %d on bootstrap connection", req.api)
				return
			}
			body := encodeMetadataResponse(
				[]kmsg.MetadataResponseBroker{{NodeID: 1, Host: leaderHost, Port: int32(leaderPort)}},
				[]kmsg.MetadataResponseTopic{{
					Topic:      "orders",
					Partitions: []kmsg.MetadataResponseTopicPartition{{Partition: 0, Leader: 1}},
				}},
			)
			writeFakeResponse(conn, req.corrID, body)
		})
	})
	host, port := fakeBrokerHostPort(t, bootstrapAddr)

	c, err := ConnectPartitionLeader(context.Background(), []Endpoint{{Host: host, Port: port}}, testConfig(t), "orders", 0, nil)
	if err != nil {
		t.Fatalf("ConnectPartitionLeader: %v", err)
	}
	defer c.Stop()

	if c.Addr() != net.JoinHostPort(leaderHost, strconv.Itoa(int(leaderPort))) {
		t.Errorf("ConnectPartitionLeader() connected to %s, want the leader %s:%d", c.Addr(), leaderHost, leaderPort)
	}
}

