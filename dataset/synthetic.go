package dataset

import (
	"errors"
	"math/rand"
)

// Synthesize expands the source records into noisy patient-style samples:
// each source record yields samplesPerDisease records reporting roughly half
// of its symptoms plus up to two unrelated noise symptoms. The output is
// shuffled deterministically by seed.
func Synthesize(table *Table, samplesPerDisease int, seed int64) ([]Record, error) {
	if table == nil || len(table.Records) == 0 {
		return nil, errors.New("no source records to synthesize from")
	}
	if samplesPerDisease <= 0 {
		return nil, errors.New("samplesPerDisease must be positive")
	}

	rng := rand.New(rand.NewSource(seed))
	all := table.Vocab.Symptoms()

	var out []Record
	for _, rec := range table.Records {
		present := make(map[string]bool, len(rec.Symptoms))
		for _, s := range rec.Symptoms {
			present[s] = true
		}
		var others []string
		for _, s := range all {
			if !present[s] {
				others = append(others, s)
			}
		}

		for n := 0; n < samplesPerDisease; n++ {
			count := len(rec.Symptoms) / 2
			if count < 1 {
				count = 1
			}
			reported := sample(rng, rec.Symptoms, count)
			noise := 2
			if noise > len(others) {
				noise = len(others)
			}
			if noise > 0 {
				reported = append(reported, sample(rng, others, noise)...)
			}
			out = append(out, Record{Disease: rec.Disease, Symptoms: reported})
		}
	}

	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out, nil
}

func sample(rng *rand.Rand, items []string, k int) []string {
	perm := rng.Perm(len(items))
	out := make([]string, 0, k)
	for _, idx := range perm[:k] {
		out = append(out, items[idx])
	}
	return out
}
