//go:build hftokenizers
// +build hftokenizers

package main

import (
	"io"

	"aura-go/aura"
	"aura-go/tokenizer"
)

func loadHF(path string) (aura.Tokenizer, io.Closer, error) {
	hf, err := tokenizer.LoadHF(path)
	if err != nil {
		return nil, nil, err
	}
	return hf, hf, nil
}
