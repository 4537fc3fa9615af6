package memory

import (
	"context"
	"testing"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
)

func TestHarvestIndexRecords(t *testing.T) {
	t.Parallel()

	idx := NewHarvestIndex()
	err := idx.RecordHarvest(context.Background(), []crawler.HarvestRecord{{Title: "Cat", PageID: 1}, {Title: "Dog", PageID: 2}})
	if err != nil {
		t.Fatalf("RecordHarvest() error = %v", err)
	}
	got := idx.Records()
	if len(got) != 2 || got[1].Title != "Dog" {
		t.Fatalf("unexpected records %+v", got)
	}
	got[0].Title = "changed"
	if idx.Records()[0].Title != "Cat" {
		t.Fatal("Records must return a copy")
	}
}
