package adapters

import (
	"context"
	"errors"
	"testing"
)

type stubMessenger struct {
	name     string
	channels []string
}

func (s stubMessenger) Name() string { return s.name }
func (s stubMessenger) Capabilities() Capability {
	return Capability{Name: s.name, Channels: s.channels}
}
func (s stubMessenger) Send(context.Context, Message) error { return nil }

func TestRegistryRoutesByChannelAndProvider(t *testing.T) {
	reg := NewRegistry(
		stubMessenger{name: "webhook", channels: []string{"webhook", "chat"}},
		stubMessenger{name: "aws_ses", channels: []string{"email"}},
		stubMessenger{name: "console", channels: []string{"console", "chat"}},
	)

	m, err := reg.Route("email")
	if err != nil || m.Name() != "aws_ses" {
		t.Fatalf("expected aws_ses for email, got %v %v", m, err)
	}
	m, err = reg.Route("chat:console")
	if err != nil || m.Name() != "console" {
		t.Fatalf("expected console provider override, got %v %v", m, err)
	}
	if _, err := reg.Route("sms"); !errors.Is(err, ErrAdapterNotFound) {
		t.Fatalf("expected ErrAdapterNotFound, got %v", err)
	}
	if got := reg.List("chat"); len(got) != 2 {
		t.Fatalf("expected two chat messengers, got %d", len(got))
	}

	all := reg.All()
	if len(all) != 3 || all[0].Name() != "aws_ses" || all[2].Name() != "webhook" {
		t.Fatalf("expected name-ordered messengers, got %v", all)
	}
}

func TestMetaString(t *testing.T) {
	meta := map[string]any{"a": " x ", "n": 3, "nil": nil}
	if MetaString(meta, "a") != "x" || MetaString(meta, "n") != "3" || MetaString(meta, "nil") != "" || MetaString(nil, "a") != "" {
		t.Fatalf("unexpected MetaString results")
	}
	if FirstNonEmpty(" ", "", "b") != "b" {
		t.Fatalf("unexpected FirstNonEmpty result")
	}
}
