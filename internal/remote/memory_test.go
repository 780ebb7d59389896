package remote

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCreateAndFindChat(t *testing.T) {
	s := NewServer()
	ctx := context.Background()

	id, err := s.CreateChat(ctx, Chat{PairKey: "a#b", Participants: [2]string{"a", "b"}})
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("empty chat id")
	}

	c, err := s.FindChatByPairKey(ctx, "a#b")
	if err != nil {
		t.Fatal(err)
	}
	if c.ID != id {
		t.Errorf("found id = %q, want %q", c.ID, id)
	}

	_, err = s.FindChatByPairKey(ctx, "x#y")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing pairKey: err = %v, want ErrNotFound", err)
	}
}

func TestCreateChatPairKeyConflict(t *testing.T) {
	s := NewServer()
	ctx := context.Background()

	if _, err := s.CreateChat(ctx, Chat{PairKey: "a#b", Participants: [2]string{"a", "b"}}); err != nil {
		t.Fatal(err)
	}
	_, err := s.CreateChat(ctx, Chat{PairKey: "a#b", Participants: [2]string{"a", "b"}})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate create: err = %v, want ErrAlreadyExists", err)
	}
}

// TestCreateChatRace has many goroutines race to create the same pair. Exactly
// one create must win; every loser must observe ErrAlreadyExists.
func TestCreateChatRace(t *testing.T) {
	s := NewServer()
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	var winners, losers int

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateChat(ctx, Chat{PairKey: "a#b", Participants: [2]string{"a", "b"}})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, ErrAlreadyExists):
				losers++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if winners != 1 || losers != n-1 {
		t.Errorf("winners = %d, losers = %d, want 1/%d", winners, losers, n-1)
	}
}

func TestAppendMessageIdempotent(t *testing.T) {
	s := NewServer()
	ctx := context.Background()

	chatID, err := s.CreateChat(ctx, Chat{PairKey: "a#b", Participants: [2]string{"a", "b"}})
	if err != nil {
		t.Fatal(err)
	}

	first, err := s.AppendMessage(ctx, chatID, Message{ClientID: "m1", From: "a", Text: "hi", CreatedAt: 1000})
	if err != nil {
		t.Fatal(err)
	}
	// Replay with the same client id: same server id, no duplicate.
	second, err := s.AppendMessage(ctx, chatID, Message{ClientID: "m1", From: "a", Text: "hi", CreatedAt: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("replay server id = %q, want %q", second, first)
	}

	sub, err := s.SubscribeMessages(ctx, chatID)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Cancel()
	snap := <-sub.Updates()
	if len(snap) != 1 {
		t.Errorf("got %d messages, want 1", len(snap))
	}
}

func TestAppendMessageUnknownChat(t *testing.T) {
	s := NewServer()
	_, err := s.AppendMessage(context.Background(), "nope", Message{ClientID: "m1"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAppendMessageBumpsChatSummary(t *testing.T) {
	s := NewServer()
	ctx := context.Background()

	chatID, err := s.CreateChat(ctx, Chat{PairKey: "a#b", Participants: [2]string{"a", "b"}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AppendMessage(ctx, chatID, Message{ClientID: "m1", From: "a", Text: "hi", CreatedAt: time.Now().UnixMilli()}); err != nil {
		t.Fatal(err)
	}

	c, err := s.FindChatByPairKey(ctx, "a#b")
	if err != nil {
		t.Fatal(err)
	}
	if c.LastMessage.Text != "hi" || c.LastMessage.From != "a" {
		t.Errorf("lastMessage = %+v, want hi from a", c.LastMessage)
	}
	if c.LastUpdated < c.CreatedAt {
		t.Errorf("lastUpdated %d went backwards from createdAt %d", c.LastUpdated, c.CreatedAt)
	}
}

func TestAppendMessageSummaryTiesWithCreation(t *testing.T) {
	s := NewServer()
	ctx := context.Background()

	// Chat creation and first send in the same millisecond.
	at := time.Now().UnixMilli()
	chatID, err := s.CreateChat(ctx, Chat{PairKey: "a#b", Participants: [2]string{"a", "b"}, CreatedAt: at, LastUpdated: at})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AppendMessage(ctx, chatID, Message{ClientID: "m1", From: "a", Text: "hi", CreatedAt: at}); err != nil {
		t.Fatal(err)
	}

	c, err := s.FindChatByPairKey(ctx, "a#b")
	if err != nil {
		t.Fatal(err)
	}
	if c.LastMessage.Text != "hi" {
		t.Errorf("lastMessage.Text = %q, want hi despite timestamp tie", c.LastMessage.Text)
	}
	if c.LastUpdated != at {
		t.Errorf("lastUpdated = %d, want %d", c.LastUpdated, at)
	}
}

func TestSubscribeChatsSnapshots(t *testing.T) {
	s := NewServer()
	ctx := context.Background()

	sub, err := s.SubscribeChats(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Cancel()

	// Initial snapshot is empty.
	snap := <-sub.Updates()
	if len(snap) != 0 {
		t.Fatalf("initial snapshot has %d chats, want 0", len(snap))
	}

	if _, err := s.CreateChat(ctx, Chat{PairKey: "a#b", Participants: [2]string{"a", "b"}, LastUpdated: 1000}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateChat(ctx, Chat{PairKey: "a#c", Participants: [2]string{"a", "c"}, LastUpdated: 2000}); err != nil {
		t.Fatal(err)
	}
	// Unrelated chat must not appear in a's snapshots.
	if _, err := s.CreateChat(ctx, Chat{PairKey: "x#y", Participants: [2]string{"x", "y"}}); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(time.Second)
	for {
		select {
		case snap = <-sub.Updates():
			if len(snap) == 2 {
				// Newest activity first.
				if snap[0].PairKey != "a#c" || snap[1].PairKey != "a#b" {
					t.Fatalf("snapshot order = [%s %s], want [a#c a#b]", snap[0].PairKey, snap[1].PairKey)
				}
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for 2-chat snapshot, last had %d", len(snap))
		}
	}
}

func TestSubscriptionCancelStopsEmissions(t *testing.T) {
	s := NewServer()
	ctx := context.Background()

	sub, err := s.SubscribeChats(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	<-sub.Updates()

	sub.Cancel()
	sub.Cancel() // idempotent

	// Mutations after cancel must not panic or emit.
	if _, err := s.CreateChat(ctx, Chat{PairKey: "a#b", Participants: [2]string{"a", "b"}}); err != nil {
		t.Fatal(err)
	}

	if _, ok := <-sub.Updates(); ok {
		t.Error("received emission after cancel")
	}
}
