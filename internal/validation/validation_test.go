package validation

import "testing"

func TestConsumeCreditsRequest_Valid(t *testing.T) {
	v := New()

	req := ConsumeCreditsRequest{
		UserID:    "user-123",
		Operation: "story_text",
		Email:     "u@example.com",
	}

	if err := v.Struct(req); err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}
}

func TestConsumeCreditsRequest_UnknownOperation(t *testing.T) {
	v := New()

	req := ConsumeCreditsRequest{
		UserID:    "user-123",
		Operation: "mint_nft",
	}

	if err := v.Struct(req); err == nil {
		t.Fatal("expected validation error for unknown operation, got nil")
	}
}

func TestConsumeCreditsRequest_MissingFields(t *testing.T) {
	v := New()

	req := ConsumeCreditsRequest{
		// UserID missing
		Operation: "",
	}

	if err := v.Struct(req); err == nil {
		t.Fatal("expected validation errors for missing required fields, got nil")
	}
}

func TestApprovePageRequest(t *testing.T) {
	v := New()

	if err := v.Struct(ApprovePageRequest{PageID: "scene#000001#v0002"}); err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}
	if err := v.Struct(ApprovePageRequest{}); err == nil {
		t.Fatal("expected validation error for missing page_id, got nil")
	}
}
