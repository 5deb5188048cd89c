package aura

import (
	"fmt"
	"strings"
	"testing"
)

func TestBuildEmptyHistory(t *testing.T) {
	p := NewPromptAssembler("Be brief.", 10)

	got := p.Build(nil, "Hi")
	want := "Be brief.\n\nUser: Hi\nAssistant:"
	if got != want {
		t.Errorf("Build = %q, want %q", got, want)
	}
}

func TestBuildAlternatesRoles(t *testing.T) {
	p := NewPromptAssembler("S", 10)
	history := []Turn{
		{Text: "hello", FromUser: true},
		{Text: "hi there", FromUser: false},
	}

	got := p.Build(history, "how are you?")
	want := "S\n\nUser: hello\nAssistant: hi there\nUser: how are you?\nAssistant:"
	if got != want {
		t.Errorf("Build = %q, want %q", got, want)
	}
}

func TestBuildKeepsLastTurns(t *testing.T) {
	p := NewPromptAssembler("S", 10)

	var history []Turn
	for i := 0; i < 12; i++ {
		history = append(history, Turn{Text: fmt.Sprintf("m%d", i), FromUser: i%2 == 0})
	}

	got := p.Build(history, "now")
	if strings.Contains(got, "m0\n") || strings.Contains(got, "m1\n") {
		t.Errorf("Oldest turns should be dropped:\n%s", got)
	}
	for i := 2; i < 12; i++ {
		if !strings.Contains(got, fmt.Sprintf("m%d\n", i)) {
			t.Errorf("Turn m%d missing:\n%s", i, got)
		}
	}
	if strings.Count(got, "\n") != 2+10+1 {
		t.Errorf("Unexpected line count in:\n%s", got)
	}
}

func TestBuildZeroWindow(t *testing.T) {
	p := NewPromptAssembler("S", 0)
	got := p.Build([]Turn{{Text: "old", FromUser: true}}, "new")
	if got != "S\n\nUser: new\nAssistant:" {
		t.Errorf("Build = %q", got)
	}
}

func TestBuildPassesTextThrough(t *testing.T) {
	p := NewPromptAssembler("S", 10)
	msg := "line one\nUser: not really\n\t<|im_end|>"
	if got := p.Build(nil, msg); !strings.Contains(got, "User: "+msg+"\nAssistant:") {
		t.Errorf("Message should be embedded verbatim: %q", got)
	}
}
