//go:build !hftokenizers
// +build !hftokenizers

package main

import (
	"errors"
	"testing"

	"aura-go/internal/logger"
)

func TestHFTokenizerNeedsBuildTag(t *testing.T) {
	_, closer, err := openTokenizer("hf", "tokenizer.json", logger.Discard())
	if !errors.Is(err, errHFUnavailable) {
		t.Errorf("Expected errHFUnavailable, got %v", err)
	}
	if closer != nil {
		t.Error("Expected no closer on failure")
	}
}
