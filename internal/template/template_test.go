package template

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"tginbox/internal/domain"
)

// 1626847200 is 2021-07-21 14:00 in UTC+8.
var testZone = time.FixedZone("UTC+8", 8*3600)

func testMessage(text string) domain.InboundMessage {
	return domain.InboundMessage{
		Kind:            domain.KindDirect,
		MessageID:       1,
		SenderID:        123,
		SenderUsername:  "testuser",
		SenderFirstName: "Test",
		SenderLastName:  "User",
		ChatID:          123,
		Text:            text,
		Timestamp:       time.Unix(1626847200, 0).UTC(),
	}
}

func channelPost() domain.InboundMessage {
	return domain.InboundMessage{
		Kind:         domain.KindChannelPost,
		MessageID:    1,
		ChatID:       -1001234567890,
		ChatTitle:    "📒 Channel",
		ChatUsername: "channeluser",
		Text:         "Channel message",
		Timestamp:    time.Unix(1626847200, 0).UTC(),
	}
}

func forwardedFromUser(msg domain.InboundMessage) domain.InboundMessage {
	msg.ForwardOrigin = &domain.ForwardOrigin{
		Kind:   domain.OriginUser,
		Sender: &domain.User{ID: 456, FirstName: "Original", LastName: "Sender", Username: "originaluser"},
	}
	return msg
}

func ctxFor(msg domain.InboundMessage) Context {
	return NewContext(msg, msg.Text, testZone)
}

func TestRenderContent_Basic(t *testing.T) {
	got := RenderContent(ctxFor(testMessage("Hello world")), "{{text}} - {{name}} - {{date}}")
	if got != "Hello world - Test User - 2021-07-21" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderContent_AllFields(t *testing.T) {
	tmpl := "{{text}} | {{name}} | {{username}} | {{user_id}} | {{date}} | {{time}} | {{message_id}}"
	got := RenderContent(ctxFor(testMessage("Test")), tmpl)
	if got != "Test | Test User | testuser | 123 | 2021-07-21 | 14:00 | 1" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderContent_ForwardOrigin(t *testing.T) {
	msg := forwardedFromUser(testMessage("Forwarded message"))
	got := RenderContent(ctxFor(msg), "From {{origin_name}} (@{{origin_username}}): {{text}}")
	if got != "From Original Sender (@originaluser): Forwarded message" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderContent_EdgeTemplates(t *testing.T) {
	ctx := ctxFor(testMessage("Test"))
	tests := map[string]string{
		"":                        "",
		"Static text only":        "Static text only",
		"{{unknown_var}} {{text}}": " Test",
		"{{{text}}}":              "Test",
		"{{ text }}":              "Test",
		"{{text":                  "{{text",
		"{{bad-name}} {{text}}":   "{{bad-name}} Test",
		"{{}}x":                   "{{}}x",
	}
	for tmpl, want := range tests {
		if got := RenderContent(ctx, tmpl); got != want {
			t.Errorf("template %q: got %q, want %q", tmpl, got, want)
		}
	}
}

func TestContentFields_OriginOmittedWhenNotForwarded(t *testing.T) {
	fields := ctxFor(testMessage("x")).ContentFields()
	for _, k := range []string{"origin_name", "origin_username", "origin_link"} {
		if _, ok := fields[k]; ok {
			t.Errorf("field %s should be absent", k)
		}
	}
}

func TestContentFields_ChannelForwardLink(t *testing.T) {
	msg := testMessage("x")
	msg.ForwardOrigin = &domain.ForwardOrigin{
		Kind:      domain.OriginChannel,
		Chat:      &domain.Chat{ID: -1009876543210, Type: domain.ChatChannel, Title: "Source Channel", Username: "sourcechannel"},
		MessageID: 42,
	}
	fields := ctxFor(msg).ContentFields()
	if fields["origin_link"] != "https://t.me/sourcechannel/42" {
		t.Fatalf("unexpected link %q", fields["origin_link"])
	}
}

func TestContentFields_ChannelPost(t *testing.T) {
	fields := ctxFor(channelPost()).ContentFields()
	want := map[string]string{
		"text":       "Channel message",
		"date":       "2021-07-21",
		"time":       "14:00",
		"name":       "📒 Channel",
		"username":   "channeluser",
		"user_id":    "-1001234567890",
		"message_id": "1",
	}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestPathFields(t *testing.T) {
	tests := []struct {
		name string
		msg  domain.InboundMessage
		want map[string]string
	}{
		{
			name: "normal message",
			msg:  testMessage("Test"),
			want: map[string]string{"date": "2021-07-21", "time": "14-00", "first_name": "Test", "name": "Test User", "user_id": "123", "origin_name": "Test User"},
		},
		{
			name: "forwarded",
			msg:  forwardedFromUser(testMessage("Test")),
			want: map[string]string{"date": "2021-07-21", "time": "14-00", "first_name": "Test", "name": "Test User", "user_id": "123", "origin_name": "Original Sender"},
		},
		{
			name: "channel post",
			msg:  channelPost(),
			want: map[string]string{"date": "2021-07-21", "time": "14-00", "first_name": "📒 Channel", "name": "📒 Channel", "user_id": "-1001234567890", "origin_name": "📒 Channel"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ctxFor(tt.msg).PathFields()); diff != "" {
				t.Errorf("path fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRenderPath(t *testing.T) {
	got := RenderPath(ctxFor(testMessage("Test")), "Telegram/{{name}}/{{date}}-{{time}}")
	if got != "Telegram/Test User/2021-07-21-14-00" {
		t.Fatalf("got %q", got)
	}

	got = RenderPath(ctxFor(forwardedFromUser(testMessage("Test"))), "{{origin_name}}/{{date}}")
	if got != "Original Sender/2021-07-21" {
		t.Fatalf("got %q", got)
	}

	got = RenderPath(ctxFor(channelPost()), "/Telegram/{{name}}-{{origin_name}}-{{user_id}}/{{date}}-{{time}}")
	if got != "/Telegram/📒 Channel-📒 Channel--1001234567890/2021-07-21-14-00" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderPath_Sanitizes(t *testing.T) {
	msg := testMessage("Test")
	msg.SenderFirstName = "Test/User#1"
	msg.SenderLastName = "Name"
	got := RenderPath(ctxFor(msg), "Telegram/{{name}}/{{date}}-{{time}}")
	if got != "Telegram/Test~User~1 Name/2021-07-21-14-00" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderPath_NoIllegalCharsFromNames(t *testing.T) {
	const illegal = `/\[]#^|:?*"<>`
	msg := forwardedFromUser(testMessage("Test"))
	msg.SenderFirstName = illegal
	msg.SenderLastName = illegal
	msg.ForwardOrigin.Sender.FirstName = illegal
	got := RenderPath(ctxFor(msg), "{{first_name}}{{name}}{{origin_name}}")
	if strings.ContainsAny(got, illegal) {
		t.Fatalf("path contains illegal characters: %q", got)
	}
}

func TestValidate(t *testing.T) {
	valid := []string{"", "plain", "{{text}}", "{{ text }} {{{raw}}}", "{{unknown_field}}", "a}}b"}
	for _, tmpl := range valid {
		if err := Validate(tmpl); err != nil {
			t.Errorf("%q should be valid: %v", tmpl, err)
		}
	}

	invalid := map[string]string{
		"{{text":       "unclosed tag",
		"ok {{}}":      "empty tag",
		"{{bad name}}": "invalid field name",
		"{{a-b}}":      "invalid field name",
	}
	for tmpl, msg := range invalid {
		err := Validate(tmpl)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("%q: expected ParseError, got %v", tmpl, err)
			continue
		}
		if pe.Msg != msg {
			t.Errorf("%q: got %q, want %q", tmpl, pe.Msg, msg)
		}
	}
}

func TestValidate_Position(t *testing.T) {
	err := Validate("hello {{}}")
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Pos != 6 {
		t.Fatalf("expected error at position 6, got %v", err)
	}
}
