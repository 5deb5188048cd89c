//go:build !hftokenizers
// +build !hftokenizers

package main

import (
	"errors"
	"io"

	"aura-go/aura"
)

var errHFUnavailable = errors.New("the hf tokenizer requires a build with -tags hftokenizers")

func loadHF(string) (aura.Tokenizer, io.Closer, error) {
	return nil, nil, errHFUnavailable
}
