package pages

import (
	"context"
	"testing"
	"time"

	"github.com/inkfable/storypress/internal/dynamotest"
)

func newPagesFixture() *Store {
	fake := dynamotest.New().AddTable("final_pages", "story_id", "page_id")
	return NewStore(fake, "final_pages")
}

func seedScene(t *testing.T, s *Store, sceneNo int, versions int, approved int) {
	t.Helper()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for v := 1; v <= versions; v++ {
		err := s.Put(context.Background(), FinalPage{
			StoryID:    "story-1",
			Kind:       KindScene,
			SceneNo:    sceneNo,
			Version:    v,
			ImageURL:   "https://img.test/p",
			IsApproved: v == approved,
			CreatedAt:  base.Add(time.Duration(v) * time.Hour),
		})
		if err != nil {
			t.Fatalf("seed scene %d v%d: %v", sceneNo, v, err)
		}
	}
}

func TestApprove_AtMostOnePerScene(t *testing.T) {
	s := newPagesFixture()
	ctx := context.Background()
	seedScene(t, s, 1, 3, 3)

	if err := s.Approve(ctx, "story-1", PageID(KindScene, 1, 1)); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	all, err := s.ListByStory(ctx, "story-1")
	if err != nil {
		t.Fatalf("ListByStory: %v", err)
	}
	approvedCount := 0
	for _, p := range all {
		if p.IsApproved {
			approvedCount++
			if p.Version != 1 {
				t.Fatalf("wrong version approved: v%d", p.Version)
			}
		}
	}
	if approvedCount != 1 {
		t.Fatalf("expected exactly one approved version, got %d", approvedCount)
	}
}

func TestApprove_DoesNotTouchOtherScenes(t *testing.T) {
	s := newPagesFixture()
	ctx := context.Background()
	seedScene(t, s, 1, 2, 2)
	seedScene(t, s, 2, 2, 1)

	if err := s.Approve(ctx, "story-1", PageID(KindScene, 1, 1)); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	all, _ := s.ListByStory(ctx, "story-1")
	for _, p := range all {
		if p.SceneNo == 2 && p.Version == 1 && !p.IsApproved {
			t.Fatalf("approval on scene 1 must not unapprove scene 2")
		}
	}
}

func TestApprove_UnknownPage(t *testing.T) {
	s := newPagesFixture()
	seedScene(t, s, 1, 1, 0)

	if err := s.Approve(context.Background(), "story-1", PageID(KindScene, 9, 1)); err == nil {
		t.Fatalf("expected error for unknown page")
	}
}

func TestListByStory_SortKeyOrder(t *testing.T) {
	s := newPagesFixture()
	ctx := context.Background()
	seedScene(t, s, 2, 1, 0)
	seedScene(t, s, 1, 1, 0)

	all, err := s.ListByStory(ctx, "story-1")
	if err != nil {
		t.Fatalf("ListByStory: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(all))
	}
	if all[0].SceneNo != 1 || all[1].SceneNo != 2 {
		t.Fatalf("pages out of scene order: %d then %d", all[0].SceneNo, all[1].SceneNo)
	}
}
