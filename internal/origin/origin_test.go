package origin

import (
	"testing"

	"tginbox/internal/domain"
)

func TestResolve_Nil(t *testing.T) {
	if got := Resolve(nil); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestResolve_User(t *testing.T) {
	got := Resolve(&domain.ForwardOrigin{
		Kind:   domain.OriginUser,
		Sender: &domain.User{ID: 456, FirstName: "Original", LastName: "Sender", Username: "originaluser"},
	})
	if got == nil || got.Name != "Original Sender" || got.Username != "originaluser" || got.Link != "" {
		t.Fatalf("unexpected origin: %+v", got)
	}
}

func TestResolve_UserWithoutLastName(t *testing.T) {
	got := Resolve(&domain.ForwardOrigin{Kind: domain.OriginUser, Sender: &domain.User{FirstName: "Solo"}})
	if got == nil || got.Name != "Solo" || got.Username != "" {
		t.Fatalf("unexpected origin: %+v", got)
	}
}

func TestResolve_HiddenUser(t *testing.T) {
	got := Resolve(&domain.ForwardOrigin{Kind: domain.OriginHiddenUser, SenderName: "Hidden User"})
	if got == nil || got.Name != "Hidden User" || got.Username != "" {
		t.Fatalf("unexpected origin: %+v", got)
	}
}

func TestResolve_ChannelWithUsername(t *testing.T) {
	got := Resolve(&domain.ForwardOrigin{
		Kind:      domain.OriginChannel,
		Chat:      &domain.Chat{ID: -1009876543210, Type: domain.ChatChannel, Title: "Source Channel", Username: "sourcechannel"},
		MessageID: 42,
	})
	if got == nil {
		t.Fatal("expected origin")
	}
	if got.Name != "Source Channel" || got.Username != "sourcechannel" {
		t.Errorf("unexpected name/username: %+v", got)
	}
	if got.Link != "https://t.me/sourcechannel/42" {
		t.Errorf("unexpected link: %s", got.Link)
	}
}

func TestResolve_PrivateChannelLink(t *testing.T) {
	got := Resolve(&domain.ForwardOrigin{
		Kind:      domain.OriginChannel,
		Chat:      &domain.Chat{ID: -1009876543210, Type: domain.ChatChannel, Title: "Private"},
		MessageID: 7,
	})
	if got == nil || got.Link != "https://t.me/9876543210/7" {
		t.Fatalf("unexpected origin: %+v", got)
	}
}

func TestResolve_ChatPrivate(t *testing.T) {
	got := Resolve(&domain.ForwardOrigin{
		Kind:       domain.OriginChat,
		SenderChat: &domain.Chat{ID: 789, Type: domain.ChatPrivate, FirstName: "Private", LastName: "User"},
	})
	if got == nil || got.Name != "Private User" || got.Username != "" {
		t.Fatalf("unexpected origin: %+v", got)
	}
}

func TestResolve_ChatGroup(t *testing.T) {
	for _, typ := range []domain.ChatType{domain.ChatGroup, domain.ChatSupergroup} {
		got := Resolve(&domain.ForwardOrigin{
			Kind:       domain.OriginChat,
			SenderChat: &domain.Chat{ID: -100111222333, Type: typ, Title: "Test Group"},
		})
		if got == nil || got.Name != "Test Group" || got.Username != "" {
			t.Fatalf("%s: unexpected origin: %+v", typ, got)
		}
	}
}

func TestResolve_ChatChannelOmitted(t *testing.T) {
	got := Resolve(&domain.ForwardOrigin{
		Kind:       domain.OriginChat,
		SenderChat: &domain.Chat{ID: -100, Type: domain.ChatChannel, Title: "Chan"},
	})
	if got != nil {
		t.Fatalf("expected origin to be omitted, got %+v", got)
	}
}

func TestResolve_TotalOverVariants(t *testing.T) {
	// Missing payloads and unknown kinds must not panic.
	inputs := []*domain.ForwardOrigin{
		{Kind: domain.OriginUser},
		{Kind: domain.OriginHiddenUser},
		{Kind: domain.OriginChannel},
		{Kind: domain.OriginChat},
		{Kind: "story"},
	}
	for _, in := range inputs {
		_ = Resolve(in)
	}
}
