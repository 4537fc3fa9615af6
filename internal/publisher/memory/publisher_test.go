package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "harvest.written", crawler.HarvestEvent{RunID: "r1", ArticleCount: 2})
	if err != nil || id1 != "memory-1" {
		t.Fatalf("unexpected publish result id=%s err=%v", id1, err)
	}
	id2, err := pub.Publish(context.Background(), "other", "payload")
	if err != nil || id2 != "memory-2" {
		t.Fatalf("unexpected publish result id=%s err=%v", id2, err)
	}

	msgs := pub.Messages()
	if len(msgs) != 2 || msgs[0].Event != "harvest.written" || msgs[1].Event != "other" {
		t.Fatalf("events not recorded correctly: %+v", msgs)
	}
	msgs[0].Event = "modified"
	if pub.Messages()[0].Event == "modified" {
		t.Fatalf("Messages must return a copy")
	}

	events := pub.HarvestEvents()
	if len(events) != 1 || events[0].RunID != "r1" {
		t.Fatalf("unexpected harvest events: %+v", events)
	}
}

func TestPublisherReturnsConfiguredError(t *testing.T) {
	t.Parallel()

	pub := New()
	pub.Err = errors.New("unavailable")
	if _, err := pub.Publish(context.Background(), "x", 1); !errors.Is(err, pub.Err) {
		t.Fatalf("expected configured error, got %v", err)
	}
	if len(pub.Messages()) != 0 {
		t.Fatalf("failed publish must not be recorded")
	}
}
