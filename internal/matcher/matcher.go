// package matcher scores catalog-B search candidates against a resolved
// catalog-A track and picks the best one, implementing the resolution phase
// of the acquisition pipeline.
//
// No corpus example ships a token-set fuzzy-ratio library (the closest,
// github.com/sahilm/fuzzy, implements subsequence matching for list
// filtering, not a symmetric ratio), so the scoring here is hand-written
// against stdlib only, in the plain-function style of
// internal/shared/shared.go's NormalizeTrackKey.
package matcher

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/desertthunder/sputnik/internal/models"
)

// Tunable scoring constants, resolving the question of how aggressively to
// accept a fuzzy match.
const (
	// DurationTolerance bounds how far a candidate's duration may drift from
	// the source track's before it is excluded from scoring entirely.
	DurationTolerance = 3 * time.Second

	// AcceptanceFloor is the minimum score a candidate must clear to be
	// accepted as a resolution. Below this, the track is marked MATCH_FAILED.
	AcceptanceFloor = 50.0

	// CloseMatchThreshold is the score gap below which the top two
	// candidates are considered ambiguous and logged to
	// match_close_alternatives.
	CloseMatchThreshold = 5.0

	// VerifiedBoost is added to a candidate's score when the catalog marks
	// it as an officially released track.
	VerifiedBoost = 8.0

	// maxViewsBoost caps the view-count tiebreak contribution.
	maxViewsBoost = 4.0

	// DurationWeight is the maximum contribution duration-closeness can make
	// to a candidate's score, scaled by (1 - |Δ|/DurationTolerance) clipped
	// to >= 0.
	DurationWeight = 10.0
)

// Candidate pairs a catalog-B track with the score it was given against a
// particular source track.
type Candidate struct {
	Track models.Track
	Score float64
}

// Result is the outcome of resolving one source track against a list of
// catalog-B candidates.
type Result struct {
	Best      *Candidate // nil when no candidate cleared AcceptanceFloor
	RunnerUp  *Candidate // nil when fewer than two candidates scored
	Ambiguous bool       // true when Best and RunnerUp are within CloseMatchThreshold
}

// Resolve scores every candidate against source and returns the best match,
// or a nil Best when nothing clears AcceptanceFloor.
func Resolve(source models.Track, candidates []models.Track) Result {
	scored := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !withinDuration(source.Duration, c.Duration) {
			continue
		}
		scored = append(scored, Candidate{Track: c, Score: score(source, c)})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	var result Result
	if len(scored) > 0 && scored[0].Score >= AcceptanceFloor {
		best := scored[0]
		result.Best = &best
	}
	if len(scored) > 1 {
		runnerUp := scored[1]
		result.RunnerUp = &runnerUp
	}
	if result.Best != nil && result.RunnerUp != nil {
		result.Ambiguous = result.Best.Score-result.RunnerUp.Score < CloseMatchThreshold
	}

	return result
}

func withinDuration(sourceSeconds, candidateSeconds int) bool {
	if sourceSeconds == 0 || candidateSeconds == 0 {
		return true
	}
	diff := time.Duration(abs(sourceSeconds-candidateSeconds)) * time.Second
	return diff <= DurationTolerance
}

// score combines a title/artist token-set ratio, duration-closeness, and the
// verified and view-count boosts into a single 0-100+ value, the five
// weighted components the resolution phase's scoring step names.
func score(source, candidate models.Track) float64 {
	titleScore := tokenSetRatio(source.Title, candidate.Title)
	artistScore := tokenSetRatio(source.Artist, candidate.Artist)

	base := 0.7*titleScore + 0.3*artistScore

	if source.ISRC != "" && source.ISRC == candidate.ISRC {
		base = 100
	}

	base += DurationWeight * durationCloseness(source.Duration, candidate.Duration)

	if candidate.Verified {
		base += VerifiedBoost
	}

	if candidate.Views > 0 {
		base += math.Min(maxViewsBoost, math.Log10(float64(candidate.Views)+1))
	}

	return base
}

// durationCloseness implements 1 - |Δ|/tolerance, clipped to >= 0. An
// unknown duration on either side (0, meaning the catalog didn't report
// one) scores as fully close, matching withinDuration's own pass-through
// for unknown durations.
func durationCloseness(sourceSeconds, candidateSeconds int) float64 {
	if sourceSeconds == 0 || candidateSeconds == 0 {
		return 1
	}
	delta := time.Duration(abs(sourceSeconds-candidateSeconds)) * time.Second
	closeness := 1 - float64(delta)/float64(DurationTolerance)
	if closeness < 0 {
		return 0
	}
	return closeness
}

// tokenSetRatio scores two strings 0-100 by comparing their normalized,
// order-independent token sets: common tokens count fully, and the penalty
// for leftover tokens on either side is weighted by a Levenshtein-distance
// ratio over the joined remainder, so "the strokes" and "strokes, the" score
// identically while "strokes" vs "strokes (remix)" is penalized.
func tokenSetRatio(a, b string) float64 {
	aTokens := tokenize(a)
	bTokens := tokenize(b)

	if len(aTokens) == 0 && len(bTokens) == 0 {
		return 100
	}
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return 0
	}

	common, aOnly, bOnly := diffTokens(aTokens, bTokens)

	sortedCommon := strings.Join(common, " ")
	aCombined := strings.Join(append(append([]string{}, common...), aOnly...), " ")
	bCombined := strings.Join(append(append([]string{}, common...), bOnly...), " ")

	best := ratio(sortedCommon, aCombined)
	if r := ratio(sortedCommon, bCombined); r > best {
		best = r
	}
	if r := ratio(aCombined, bCombined); r > best {
		best = r
	}

	return best
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	sort.Strings(fields)
	return fields
}

// diffTokens splits two sorted token slices into their intersection and
// each side's exclusive remainder.
func diffTokens(a, b []string) (common, aOnly, bOnly []string) {
	bSeen := make(map[string]int, len(b))
	for _, t := range b {
		bSeen[t]++
	}

	aSeen := make(map[string]int, len(a))
	for _, t := range a {
		aSeen[t]++
	}

	for _, t := range a {
		if bSeen[t] > 0 {
			common = append(common, t)
			bSeen[t]--
		} else {
			aOnly = append(aOnly, t)
		}
	}

	for _, t := range b {
		if aSeen[t] > 0 {
			aSeen[t]--
		} else {
			bOnly = append(bOnly, t)
		}
	}

	return common, aOnly, bOnly
}

// ratio converts a Levenshtein edit distance into a 0-100 similarity score,
// the same scale python-Levenshtein's ratio() and fuzzywuzzy use.
func ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 100
	}
	dist := levenshtein(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 100
	}
	return 100 * (1 - float64(dist)/float64(maxLen))
}

func levenshtein(a, b string) int {
	ar, br := []rune(a), []rune(b)
	m, n := len(ar), len(br)

	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
