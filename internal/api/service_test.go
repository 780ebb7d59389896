package api

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/lframos/pairchat/internal/bus"
	"github.com/lframos/pairchat/internal/exchange"
	"github.com/lframos/pairchat/internal/outbox"
	"github.com/lframos/pairchat/internal/qr"
	"github.com/lframos/pairchat/internal/remote"
	"github.com/lframos/pairchat/internal/resolver"
	"github.com/lframos/pairchat/internal/status"
	"github.com/lframos/pairchat/internal/store"
	"go.uber.org/zap"
)

type fixture struct {
	db  *store.DB
	bus *bus.Bus
	out *outbox.Manager
	ex  *exchange.Exchange
}

func testFixture(t *testing.T) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := zap.NewNop()
	b := bus.New()
	srv := remote.NewServer()
	res := resolver.New(db, srv, logger)
	scan := qr.NewScanner("u1", time.Minute)
	return &fixture{
		db:  db,
		bus: b,
		out: outbox.NewManager(db, srv, b, logger),
		ex:  exchange.New(db, res, scan, b, logger),
	}
}

func seedUser(t *testing.T, db *store.DB) {
	t.Helper()
	err := db.UpsertUser(&store.User{UID: "u1", Username: "alice", DisplayName: "Alice"})
	if err != nil {
		t.Fatal(err)
	}
}

func TestChatServiceListAndGet(t *testing.T) {
	f := testFixture(t)
	seedUser(t, f.db)
	svc := NewChatService(f.db, f.bus)

	payload, _ := qr.Encode("u2", "bob", "Bob")
	chatID, err := f.ex.Accept(context.Background(), "u1", payload)
	if err != nil {
		t.Fatal(err)
	}

	chats, err := svc.ListChats(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 1 || chats[0].ID != chatID {
		t.Fatalf("chats = %+v, want single chat %s", chats, chatID)
	}

	c, err := svc.GetChat(chatID)
	if err != nil {
		t.Fatal(err)
	}
	if c.PeerUsername != "bob" {
		t.Errorf("PeerUsername = %q, want bob", c.PeerUsername)
	}

	if _, err := svc.GetChat("missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetChat(missing) = %v, want ErrNotFound", err)
	}
}

func TestMessageServiceSendAndList(t *testing.T) {
	f := testFixture(t)
	seedUser(t, f.db)
	svc := NewMessageService(f.db, f.out, f.bus)

	payload, _ := qr.Encode("u2", "bob", "Bob")
	chatID, err := f.ex.Accept(context.Background(), "u1", payload)
	if err != nil {
		t.Fatal(err)
	}

	clientID, err := svc.Send(context.Background(), chatID, "u1", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if clientID == "" {
		t.Fatal("empty client id")
	}

	msgs, err := svc.ListMessages(chatID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Status != store.StatusSent {
		t.Fatalf("msgs = %+v, want one sent message", msgs)
	}

	pending, err := svc.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
}

func TestExchangeServiceOwnPayload(t *testing.T) {
	f := testFixture(t)
	seedUser(t, f.db)
	svc := NewExchangeService(f.db, f.ex)

	s, err := svc.OwnPayload("u1")
	if err != nil {
		t.Fatal(err)
	}
	p, err := qr.Decode(s)
	if err != nil {
		t.Fatal(err)
	}
	if p.UID != "u1" || p.Username != "alice" {
		t.Errorf("payload = %+v", p)
	}

	if _, err := svc.OwnPayload("ghost"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("OwnPayload(ghost) = %v, want ErrNotFound", err)
	}

	png, err := svc.OwnPNG("u1", 256)
	if err != nil {
		t.Fatal(err)
	}
	if len(png) == 0 {
		t.Error("empty png")
	}
}

func TestSessionServiceInfo(t *testing.T) {
	f := testFixture(t)
	seedUser(t, f.db)

	machine := status.NewMachine(f.bus)
	svc := NewSessionService("main", machine, f.db)

	info, err := svc.Info()
	if err != nil {
		t.Fatal(err)
	}
	if info.SessionName != "main" {
		t.Errorf("SessionName = %q", info.SessionName)
	}
	if info.State != status.Booting {
		t.Errorf("State = %q, want booting", info.State)
	}
	if info.ChatCount != 0 || info.MessageCount != 0 {
		t.Errorf("counts = %d/%d, want 0/0", info.ChatCount, info.MessageCount)
	}
}
