package aura

import (
	"reflect"
	"testing"
)

func TestSequenceCreation(t *testing.T) {
	tokenIDs := []int{1, 2, 3, 4, 5}
	seq := NewSequence(tokenIDs)

	if seq.Len() != 5 {
		t.Errorf("Expected length 5, got %d", seq.Len())
	}
	if seq.NumPromptTokens != 5 {
		t.Errorf("Expected 5 prompt tokens, got %d", seq.NumPromptTokens)
	}
	if seq.NumCompletionTokens() != 0 {
		t.Errorf("Expected 0 completion tokens, got %d", seq.NumCompletionTokens())
	}
	if seq.LastToken != 5 {
		t.Errorf("Expected last token 5, got %d", seq.LastToken)
	}

	tokenIDs[0] = 42
	if seq.TokenIDs[0] != 1 {
		t.Error("NewSequence should copy the prompt")
	}
}

func TestSequenceAppendToken(t *testing.T) {
	seq := NewSequence([]int{1, 2, 3})
	seq.AppendToken(4)

	if seq.Len() != 4 {
		t.Errorf("Expected length 4, got %d", seq.Len())
	}
	if seq.LastToken != 4 {
		t.Errorf("Expected last token 4, got %d", seq.LastToken)
	}
	if !reflect.DeepEqual(seq.PromptTokenIDs(), []int{1, 2, 3}) {
		t.Errorf("Unexpected prompt tokens %v", seq.PromptTokenIDs())
	}
	if !reflect.DeepEqual(seq.CompletionTokenIDs(), []int{4}) {
		t.Errorf("Unexpected completion tokens %v", seq.CompletionTokenIDs())
	}
}

func TestEmptySequence(t *testing.T) {
	seq := NewSequence(nil)
	if seq.LastToken != -1 {
		t.Errorf("Expected last token -1, got %d", seq.LastToken)
	}
}

func TestTruncateLeft(t *testing.T) {
	tests := []struct {
		name  string
		ids   []int
		limit int
		want  []int
	}{
		{"under limit", []int{1, 2, 3}, 5, []int{1, 2, 3}},
		{"at limit", []int{1, 2, 3}, 3, []int{1, 2, 3}},
		{"over limit", []int{1, 2, 3, 4, 5}, 2, []int{4, 5}},
		{"zero limit", []int{1, 2}, 0, []int{}},
		{"negative limit", []int{1, 2}, -3, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateLeft(tt.ids, tt.limit)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("TruncateLeft(%v, %d) = %v, want %v", tt.ids, tt.limit, got, tt.want)
			}
		})
	}
}

func TestTruncateLeftKeepsSuffix(t *testing.T) {
	ids := make([]int, 100)
	for i := range ids {
		ids[i] = i * 7
	}
	for limit := 0; limit <= len(ids)+5; limit++ {
		got := TruncateLeft(ids, limit)
		wantLen := min(limit, len(ids))
		if len(got) != wantLen {
			t.Fatalf("limit %d: got length %d, want %d", limit, len(got), wantLen)
		}
		if !reflect.DeepEqual(got, ids[len(ids)-wantLen:]) && wantLen > 0 {
			t.Fatalf("limit %d: result is not the suffix of the input", limit)
		}
	}
}
