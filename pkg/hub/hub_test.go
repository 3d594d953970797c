package hub

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	gorilla "github.com/gorilla/websocket"
)

func TestBroadcast_DropsWhenQueueFull(t *testing.T) {
	h := New("test")
	for i := 0; i < cap(h.broadcast)+5; i++ {
		h.BroadcastBinary([]byte{byte(i)})
	}
	if h.Dropped() != 5 {
		t.Errorf("Dropped = %d, want 5", h.Dropped())
	}
}

func TestRun_DeliversAndStops(t *testing.T) {
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	c := &Client{hub: h, send: make(chan Message, 1)}
	h.register <- c

	if err := h.BroadcastJSON(map[string]int{"n": 1}); err != nil {
		t.Fatalf("BroadcastJSON: %v", err)
	}
	select {
	case msg := <-c.send:
		if msg.Type != JSONMessage || string(msg.Data) != `{"n":1}` {
			t.Errorf("msg = %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
	if h.ClientCount() != 1 || !h.IsRunning() {
		t.Errorf("clients=%d running=%v", h.ClientCount(), h.IsRunning())
	}

	cancel()
	<-stopped
	if _, ok := <-c.send; ok {
		t.Error("client channel not closed on stop")
	}
	if h.IsRunning() {
		t.Error("hub still running")
	}
}

func TestRun_DropsSlowClient(t *testing.T) {
	h := New("test", WithMaxMisses(0))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	c := &Client{hub: h, send: make(chan Message)}
	h.register <- c
	h.BroadcastBinary([]byte{1})

	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if h.ClientCount() != 0 {
		t.Error("slow client not dropped")
	}
}

func TestRun_ToleratesMisses(t *testing.T) {
	h := New("test", WithMaxMisses(2))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	c := &Client{id: "slow", hub: h, send: make(chan Message)}
	h.register <- c
	// Registration is synchronous, so the two broadcasts below are handled
	// after it. Each one misses the unbuffered channel.
	h.BroadcastBinary([]byte{1})
	h.BroadcastBinary([]byte{2})

	time.Sleep(50 * time.Millisecond)
	if h.ClientCount() != 1 {
		t.Fatal("client dropped before exceeding the miss limit")
	}

	h.BroadcastBinary([]byte{3})
	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if h.ClientCount() != 0 {
		t.Error("client not dropped after exceeding the miss limit")
	}
}

func TestQueueSnapshot(t *testing.T) {
	frames := make([]Message, sendBuffer+4)
	for i := range frames {
		frames[i] = NewBinaryMessage([]byte{byte(i)})
	}
	h := New("test", WithSnapshot(func() []Message { return frames }))

	c := newClient(h, nil)
	c.queueSnapshot()
	if len(c.send) != sendBuffer {
		t.Fatalf("queued %d messages, want %d", len(c.send), sendBuffer)
	}
	if first := <-c.send; first.Data[0] != 0 {
		t.Errorf("first snapshot message = %v", first.Data)
	}
	if c.ID() == "" {
		t.Error("client has no id")
	}
}

func TestServe_WaitsForWriter(t *testing.T) {
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	// Writers still active when the handler returns would use a pooled conn.
	activeOnReturn := make(chan int32, 1)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		h.Serve(conn)
		activeOnReturn <- h.writers.Load()
	}))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = app.Listener(ln) }()
	defer app.Shutdown()

	conn, _, err := gorilla.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if h.ClientCount() != 1 {
		t.Fatal("viewer never registered")
	}

	h.BroadcastBinary([]byte{0xff, 0xd8})
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read: %v", err)
	}
	for i := 0; i < 5; i++ {
		h.BroadcastBinary([]byte{byte(i)})
	}
	_ = conn.Close()

	select {
	case n := <-activeOnReturn:
		if n != 0 {
			t.Errorf("%d writers still active when Serve returned", n)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after the viewer left")
	}
}
