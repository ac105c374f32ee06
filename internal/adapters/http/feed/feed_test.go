package feed

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/killfeed/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m Message
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatalf("read: %v", err)
	}
	return m
}

func waitClients(h *Hub, n int) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.Clients() == n {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func TestHub(t *testing.T) {
	Convey("Given a hub behind a test server", t, func() {
		h := NewHub(WithHistory(2))
		srv := httptest.NewServer(h)
		defer srv.Close()
		defer h.Close()

		Convey("When messages are published before a client connects", func() {
			h.Publish(Message{Type: TypeStats, Text: "one"})
			h.Publish(Message{Type: TypeStats, Text: "two"})
			h.Publish(Message{Type: TypeStats, Text: "three"})
			conn := dial(t, srv.URL)

			Convey("Then the client is replayed the most recent history", func() {
				So(read(t, conn).Text, ShouldEqual, "two")
				So(read(t, conn).Text, ShouldEqual, "three")
			})
		})

		Convey("When two clients are connected", func() {
			a := dial(t, srv.URL)
			b := dial(t, srv.URL)
			So(waitClients(h, 2), ShouldBeTrue)

			e := model.Event{LocalKey: "k1", Readout: "Ace killed Bandit"}
			h.Publish(Message{Type: TypeEventAdded, Key: "k1", Event: &e})

			Convey("Then both receive the event", func() {
				for _, conn := range []*websocket.Conn{a, b} {
					m := read(t, conn)
					So(m.Type, ShouldEqual, TypeEventAdded)
					So(m.Event.Readout, ShouldEqual, "Ace killed Bandit")
					So(m.Time.IsZero(), ShouldBeFalse)
				}
			})

			Convey("Then a client that leaves is unregistered", func() {
				_ = a.Close()
				So(waitClients(h, 1), ShouldBeTrue)
			})
		})

		Convey("When the hub is closed", func() {
			conn := dial(t, srv.URL)
			So(waitClients(h, 1), ShouldBeTrue)
			h.Close()

			Convey("Then clients are disconnected", func() {
				So(h.Clients(), ShouldEqual, 0)
				_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
				_, _, err := conn.ReadMessage()
				So(err, ShouldNotBeNil)
			})
		})
	})
}
