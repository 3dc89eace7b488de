// package matcher scores target catalog candidates against a source track
//
// A score combines title similarity (weight 0.5), duration closeness (weight 0.3) and a flat 0.2
// bonus for official channels. Scores are not clamped: a candidate far longer than the source can
// score below zero.
package matcher

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/desertthunder/plmigrate/internal/models"
)

const (
	TitleWeight    = 0.5
	DurationWeight = 0.3
	ChannelBonus   = 0.2
)

var isoDuration = regexp.MustCompile(`PT(\d+H)?(\d+M)?(\d+S)?`)

// Match is the winning candidate of [Best] together with its score.
type Match struct {
	Candidate models.Candidate
	Score     float64
}

// Score rates how well cand matches track.
func Score(track models.Track, cand models.Candidate) float64 {
	score := TitleSimilarity(track.Name, cand.Title) * TitleWeight
	score += DurationScore(track.DurationMS, cand.DurationMS) * DurationWeight
	return score + ChannelScore(cand.ChannelTitle)
}

// Best returns the candidate with the strictly greatest score; on ties the earliest one wins.
// ok is false when candidates is empty.
func Best(track models.Track, candidates []models.Candidate) (m Match, ok bool) {
	for i, cand := range candidates {
		s := Score(track, cand)
		if i == 0 || s > m.Score {
			m = Match{Candidate: cand, Score: s}
		}
	}
	return m, len(candidates) > 0
}

// Accept reports whether a match clears threshold. A score equal to the threshold is rejected.
func Accept(m Match, threshold float64) bool {
	return m.Score > threshold
}

// TitleSimilarity is the Dice coefficient of the character bigrams of a and b, ignoring whitespace.
func TitleSimilarity(a, b string) float64 {
	first, second := stripSpace(a), stripSpace(b)
	if string(first) == string(second) {
		return 1
	}
	if len(first) < 2 || len(second) < 2 {
		return 0
	}

	bigrams := make(map[[2]rune]int, len(first)-1)
	for i := 0; i < len(first)-1; i++ {
		bigrams[[2]rune{first[i], first[i+1]}]++
	}

	intersection := 0
	for i := 0; i < len(second)-1; i++ {
		bg := [2]rune{second[i], second[i+1]}
		if bigrams[bg] > 0 {
			bigrams[bg]--
			intersection++
		}
	}
	return 2 * float64(intersection) / float64(len(first)+len(second)-2)
}

// DurationScore is 1 minus the relative duration difference. It is 0 when srcMS is not positive.
func DurationScore(srcMS, candMS int) float64 {
	if srcMS <= 0 {
		return 0
	}
	diff := math.Abs(float64(srcMS - candMS))
	return 1 - diff/float64(srcMS)
}

// ChannelScore returns [ChannelBonus] for official, VEVO and auto-generated "- Topic" channels.
func ChannelScore(channel string) float64 {
	c := strings.ToLower(channel)
	if strings.Contains(c, "official") || strings.Contains(c, "vevo") || strings.HasSuffix(c, " - topic") {
		return ChannelBonus
	}
	return 0
}

// ParseISODuration parses the PT#H#M#S subset of ISO 8601 used by YouTube, returning 0 when s does not match.
func ParseISODuration(s string) time.Duration {
	parts := isoDuration.FindStringSubmatch(s)
	if parts == nil {
		return 0
	}

	unit := func(part string) time.Duration {
		if part == "" {
			return 0
		}
		n, _ := strconv.Atoi(part[:len(part)-1])
		return time.Duration(n)
	}
	return unit(parts[1])*time.Hour + unit(parts[2])*time.Minute + unit(parts[3])*time.Second
}

func stripSpace(s string) []rune {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if !unicode.IsSpace(r) {
			out = append(out, r)
		}
	}
	return out
}
