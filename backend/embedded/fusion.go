package embedded

import "sort"

// rrfConstant is the standard reciprocal rank fusion smoothing parameter.
// k=60 is empirically validated across domains.
const rrfConstant = 60

// scored is one ranked entry from a single search leg.
type scored struct {
	id    string
	score float64
}

// fusedEntry tracks a document's contributions during fusion.
type fusedEntry struct {
	id           string
	rrfScore     float64
	lexicalScore float64
	lexicalRank  int // 1-indexed, 0 if absent
	vectorRank   int // 1-indexed, 0 if absent
	inBothLists  bool
}

// fuseRRF combines the lexical and vector result lists using reciprocal
// rank fusion with equal leg weights:
//
//	score(d) = Σ 1 / (k + rank_i)
//
// Documents present in only one list contribute the missing leg at
// max(len(lexical), len(vector)) + 1. The fused list is sorted by RRF score
// with deterministic tie-breaking (both lists first, then lexical score,
// then id) and normalized so the top score is 1.
func fuseRRF(lexical, vector []scored) []scored {
	if len(lexical) == 0 && len(vector) == 0 {
		return []scored{}
	}

	entries := make(map[string]*fusedEntry, len(lexical)+len(vector))
	getOrCreate := func(id string) *fusedEntry {
		if e, ok := entries[id]; ok {
			return e
		}
		e := &fusedEntry{id: id}
		entries[id] = e
		return e
	}

	for rank, r := range lexical {
		e := getOrCreate(r.id)
		e.lexicalScore = r.score
		e.lexicalRank = rank + 1
		e.rrfScore += 1.0 / float64(rrfConstant+rank+1)
	}
	for rank, r := range vector {
		e := getOrCreate(r.id)
		e.vectorRank = rank + 1
		e.rrfScore += 1.0 / float64(rrfConstant+rank+1)
		if e.lexicalRank > 0 {
			e.inBothLists = true
		}
	}

	missingRank := len(lexical) + 1
	if len(vector) >= len(lexical) {
		missingRank = len(vector) + 1
	}
	for _, e := range entries {
		if e.lexicalRank == 0 || e.vectorRank == 0 {
			e.rrfScore += 1.0 / float64(rrfConstant+missingRank)
		}
	}

	fused := make([]*fusedEntry, 0, len(entries))
	for _, e := range entries {
		fused = append(fused, e)
	}
	sort.Slice(fused, func(i, j int) bool {
		a, b := fused[i], fused[j]
		if a.rrfScore != b.rrfScore {
			return a.rrfScore > b.rrfScore
		}
		if a.inBothLists != b.inBothLists {
			return a.inBothLists
		}
		if a.lexicalScore != b.lexicalScore {
			return a.lexicalScore > b.lexicalScore
		}
		return a.id < b.id
	})

	maxScore := fused[0].rrfScore
	results := make([]scored, len(fused))
	for i, e := range fused {
		score := e.rrfScore
		if maxScore > 0 {
			score /= maxScore
		}
		results[i] = scored{id: e.id, score: score}
	}
	return results
}
