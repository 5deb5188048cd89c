package aura

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// Candidate is one token of a nucleus together with its renormalized probability.
type Candidate struct {
	ID   int
	Prob float64
}

// Sampler draws the next token from logits with temperature and nucleus (top-p)
// sampling. It is safe for concurrent use.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler returns a sampler seeded with seed, or with the clock when seed is zero.
func NewSampler(seed int64) *Sampler {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Sampler{rng: rand.New(rand.NewSource(seed))}
}

// Sample picks a token id from logits.
//
//  1. Logits are divided by temperature when it is positive; zero leaves them unscaled.
//  2. A softmax is taken after subtracting the largest logit.
//  3. Ids are ordered by descending probability, equal probabilities by ascending id.
//  4. The shortest prefix whose cumulative mass reaches topP is kept, including
//     the token that crosses the threshold, and renormalized.
//  5. A uniform draw in [0,1) selects the first candidate whose running sum exceeds it.
//
// If rounding leaves the draw unmatched, the most probable token is returned.
func (s *Sampler) Sample(logits []float32, temperature, topP float64) (int, error) {
	nucleus, err := Nucleus(logits, temperature, topP)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	r := s.rng.Float64()
	s.mu.Unlock()

	return pick(nucleus, r), nil
}

func pick(nucleus []Candidate, r float64) int {
	var accum float64
	for _, c := range nucleus {
		accum += c.Prob
		if r < accum {
			return c.ID
		}
	}
	return nucleus[0].ID
}

// Nucleus returns the renormalized top-p candidates for logits, most probable first.
// It never returns an empty slice without an error.
func Nucleus(logits []float32, temperature, topP float64) ([]Candidate, error) {
	if len(logits) == 0 {
		return nil, &ConfigurationError{Field: "logits", Reason: "empty"}
	}
	if err := validateSampling(temperature, topP); err != nil {
		return nil, err
	}

	probs := Softmax(logits, temperature)

	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return probs[order[a]] > probs[order[b]]
	})

	cutoff := len(order)
	if topP < 1 {
		var cum float64
		for i, id := range order {
			cum += probs[id]
			if cum >= topP {
				cutoff = i + 1
				break
			}
		}
	}

	var mass float64
	for _, id := range order[:cutoff] {
		mass += probs[id]
	}

	nucleus := make([]Candidate, cutoff)
	for i, id := range order[:cutoff] {
		p := probs[id]
		if mass > 0 {
			p /= mass
		}
		nucleus[i] = Candidate{ID: id, Prob: p}
	}
	return nucleus, nil
}

// Softmax converts logits into probabilities, scaling by 1/temperature when
// temperature is positive. Non-finite inputs degrade to a one-hot on the argmax.
func Softmax(logits []float32, temperature float64) []float64 {
	scaled := make([]float64, len(logits))
	for i, l := range logits {
		v := float64(l)
		if temperature > 0 {
			v /= temperature
		}
		scaled[i] = v
	}

	maxIdx := 0
	for i, v := range scaled {
		if v > scaled[maxIdx] {
			maxIdx = i
		}
	}
	maxLogit := scaled[maxIdx]

	probs := make([]float64, len(scaled))
	var sum float64
	for i, v := range scaled {
		probs[i] = math.Exp(v - maxLogit)
		sum += probs[i]
	}

	if math.IsNaN(sum) || math.IsInf(sum, 0) || sum <= 0 {
		for i := range probs {
			probs[i] = 0
		}
		probs[maxIdx] = 1
		return probs
	}

	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
