package aura

import (
	"errors"
	"math"
	"testing"
)

func TestNucleusKeepsDominantToken(t *testing.T) {
	// Softmax of [2, 1, 0.1] is roughly [0.66, 0.24, 0.10].
	logits := []float32{2.0, 1.0, 0.1}

	nucleus, err := Nucleus(logits, 1.0, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if len(nucleus) != 1 || nucleus[0].ID != 0 {
		t.Fatalf("Expected nucleus {0}, got %+v", nucleus)
	}
	if nucleus[0].Prob != 1 {
		t.Errorf("Expected renormalized probability 1, got %v", nucleus[0].Prob)
	}

	s := NewSampler(7)
	for i := 0; i < 100; i++ {
		id, err := s.Sample(logits, 1.0, 0.5)
		if err != nil {
			t.Fatal(err)
		}
		if id != 0 {
			t.Fatalf("Sample %d returned %d, want 0", i, id)
		}
	}
}

func TestNucleusMinimalPrefix(t *testing.T) {
	logits := []float32{
		float32(math.Log(0.2)),
		float32(math.Log(0.5)),
		float32(math.Log(0.3)),
	}

	tests := []struct {
		topP float64
		want []int
	}{
		{0.01, []int{1}},
		{0.45, []int{1}},
		{0.75, []int{1, 2}},
		{0.85, []int{1, 2, 0}},
		{1.0, []int{1, 2, 0}},
	}
	for _, tt := range tests {
		nucleus, err := Nucleus(logits, 1.0, tt.topP)
		if err != nil {
			t.Fatal(err)
		}
		if len(nucleus) != len(tt.want) {
			t.Errorf("topP %v: got %d candidates, want %d", tt.topP, len(nucleus), len(tt.want))
			continue
		}
		var sum float64
		for i, c := range nucleus {
			if c.ID != tt.want[i] {
				t.Errorf("topP %v: candidate %d is %d, want %d", tt.topP, i, c.ID, tt.want[i])
			}
			sum += c.Prob
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("topP %v: probabilities sum to %v", tt.topP, sum)
		}
	}
}

func TestNucleusFullVocabularyAtTopPOne(t *testing.T) {
	logits := make([]float32, 50)
	for i := range logits {
		logits[i] = float32(i) * 0.5
	}
	// The tail is far below float precision but still kept.
	logits[0] = -1e4

	nucleus, err := Nucleus(logits, 0.7, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if len(nucleus) != len(logits) {
		t.Errorf("Expected %d candidates, got %d", len(logits), len(nucleus))
	}
}

func TestNucleusTieBreakByID(t *testing.T) {
	nucleus, err := Nucleus([]float32{1, 3, 1, 3}, 1.0, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{1, 3, 0, 2}
	for i, c := range nucleus {
		if c.ID != want[i] {
			t.Fatalf("Order %v, want %v", ids(nucleus), want)
		}
	}
}

func ids(cs []Candidate) []int {
	out := make([]int, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestSoftmaxTemperature(t *testing.T) {
	logits := []float32{1, 2, 3}

	unscaled := Softmax(logits, 1)
	zero := Softmax(logits, 0)
	for i := range unscaled {
		if unscaled[i] != zero[i] {
			t.Fatalf("Temperature 0 should not scale: %v vs %v", zero, unscaled)
		}
	}

	sharp := Softmax(logits, 0.5)
	if sharp[2] <= unscaled[2] {
		t.Errorf("Lower temperature should sharpen: %v vs %v", sharp[2], unscaled[2])
	}
	flat := Softmax(logits, 2)
	if flat[2] >= unscaled[2] {
		t.Errorf("Higher temperature should flatten: %v vs %v", flat[2], unscaled[2])
	}
}

func TestSoftmaxLargeLogits(t *testing.T) {
	probs := Softmax([]float32{1e30, 1e30 - 1, -1e30}, 1)
	var sum float64
	for _, p := range probs {
		if math.IsNaN(p) {
			t.Fatalf("NaN in %v", probs)
		}
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("Probabilities sum to %v", sum)
	}
}

func TestSoftmaxNonFinite(t *testing.T) {
	probs := Softmax([]float32{float32(math.NaN()), 1, 2}, 1)
	var sum float64
	for _, p := range probs {
		sum += p
	}
	if sum != 1 {
		t.Errorf("Expected a one-hot distribution, got %v", probs)
	}
}

func TestTemperatureZeroIsNotGreedy(t *testing.T) {
	s := NewSampler(3)
	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		id, err := s.Sample([]float32{0, 0}, 0, 1.0)
		if err != nil {
			t.Fatal(err)
		}
		seen[id] = true
	}
	if !seen[0] || !seen[1] {
		t.Errorf("Expected both tokens to be drawn, saw %v", seen)
	}
}

func TestSamplerDeterministicWithSeed(t *testing.T) {
	logits := []float32{0.3, 0.1, 0.9, 0.5, 0.2}
	a, b := NewSampler(99), NewSampler(99)
	for i := 0; i < 50; i++ {
		x, _ := a.Sample(logits, 1.0, 0.95)
		y, _ := b.Sample(logits, 1.0, 0.95)
		if x != y {
			t.Fatalf("Draw %d differs: %d vs %d", i, x, y)
		}
	}
}

func TestPickFallsBackToMostProbable(t *testing.T) {
	nucleus := []Candidate{{ID: 4, Prob: 0.6}, {ID: 2, Prob: 0.3999999}}
	if id := pick(nucleus, 0.99999999); id != 4 {
		t.Errorf("Expected fallback to 4, got %d", id)
	}
	if id := pick(nucleus, 0.7); id != 2 {
		t.Errorf("Expected 2, got %d", id)
	}
	if id := pick(nucleus, 0); id != 4 {
		t.Errorf("Expected 4, got %d", id)
	}
}

func TestSampleRejectsInvalidParameters(t *testing.T) {
	s := NewSampler(1)
	logits := []float32{1, 2}

	tests := []struct {
		name string
		temp float64
		topP float64
	}{
		{"negative temperature", -0.1, 0.9},
		{"nan temperature", math.NaN(), 0.9},
		{"infinite temperature", math.Inf(1), 0.9},
		{"zero top-p", 0.7, 0},
		{"top-p above one", 0.7, 1.01},
		{"nan top-p", 0.7, math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Sample(logits, tt.temp, tt.topP)
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("Expected ConfigurationError, got %v", err)
			}
		})
	}

	if _, err := s.Sample(nil, 0.7, 0.9); err == nil {
		t.Error("Expected error for empty logits")
	}
}
