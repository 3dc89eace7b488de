package matcher

import (
	"math"
	"testing"
	"time"

	"github.com/desertthunder/plmigrate/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	track := models.Track{ID: "sp1", Name: "Bohemian Rhapsody", Artists: []string{"Queen"}, DurationMS: 200000}

	t.Run("perfect topic channel match", func(t *testing.T) {
		cand := models.Candidate{ID: "yt1", Title: "Bohemian Rhapsody", ChannelTitle: "Queen - Topic", DurationMS: 200000}
		assert.InDelta(t, 1.0, Score(track, cand), 1e-9)
	})

	t.Run("half duration unofficial channel", func(t *testing.T) {
		cand := models.Candidate{ID: "yt2", Title: "Bohemian Rhapsody", ChannelTitle: "some uploader", DurationMS: 100000}
		assert.InDelta(t, 0.65, Score(track, cand), 1e-9)
	})

	t.Run("duration far off goes negative", func(t *testing.T) {
		cand := models.Candidate{ID: "yt3", Title: "zz", ChannelTitle: "x", DurationMS: 800000}
		assert.Less(t, Score(track, cand), 0.0)
	})

	t.Run("zero source duration contributes nothing", func(t *testing.T) {
		cand := models.Candidate{ID: "yt4", Title: "Bohemian Rhapsody", ChannelTitle: "x", DurationMS: 200000}
		assert.InDelta(t, 0.5, Score(models.Track{Name: "Bohemian Rhapsody"}, cand), 1e-9)
	})
}

func TestTitleSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "Yesterday", "Yesterday", 1},
		{"whitespace ignored", "Hello World", "HelloWorld", 1},
		{"both empty", "", "", 1},
		{"too short", "a", "ab", 0},
		{"empty vs word", "", "word", 0},
		{"one shared bigram", "night", "nacht", 0.25},
		{"case sensitive", "Hello", "hello", 0.75},
		{"disjoint", "abc", "xyz", 0},
		{"repeated bigrams counted once each", "aaaa", "aa", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, TitleSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestDurationScore(t *testing.T) {
	assert.InDelta(t, 1.0, DurationScore(200000, 200000), 1e-9)
	assert.InDelta(t, 0.5, DurationScore(200000, 100000), 1e-9)
	assert.InDelta(t, 0.5, DurationScore(200000, 300000), 1e-9)
	assert.InDelta(t, -1.0, DurationScore(100000, 300000), 1e-9)
	assert.Zero(t, DurationScore(0, 300000))
	assert.Zero(t, DurationScore(-5, 300000))
}

func TestChannelScore(t *testing.T) {
	tests := []struct {
		channel string
		want    float64
	}{
		{"Queen Official", ChannelBonus},
		{"QueenVEVO", ChannelBonus},
		{"Queen - Topic", ChannelBonus},
		{"Topic Queen", 0},
		{"Queen-Topic", 0},
		{"random uploads", 0},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.channel, func(t *testing.T) {
			assert.Equal(t, tt.want, ChannelScore(tt.channel))
		})
	}
}

func TestBest(t *testing.T) {
	track := models.Track{Name: "Song", DurationMS: 180000}

	t.Run("empty", func(t *testing.T) {
		_, ok := Best(track, nil)
		assert.False(t, ok)
	})

	t.Run("greatest wins", func(t *testing.T) {
		cands := []models.Candidate{
			{ID: "a", Title: "Other", ChannelTitle: "x", DurationMS: 90000},
			{ID: "b", Title: "Song", ChannelTitle: "Band - Topic", DurationMS: 180000},
			{ID: "c", Title: "Song", ChannelTitle: "x", DurationMS: 180000},
		}
		m, ok := Best(track, cands)
		require.True(t, ok)
		assert.Equal(t, "b", m.Candidate.ID)
		assert.InDelta(t, 1.0, m.Score, 1e-9)
	})

	t.Run("ties keep first", func(t *testing.T) {
		cands := []models.Candidate{
			{ID: "first", Title: "Song", ChannelTitle: "x", DurationMS: 180000},
			{ID: "second", Title: "Song", ChannelTitle: "y", DurationMS: 180000},
		}
		m, ok := Best(track, cands)
		require.True(t, ok)
		assert.Equal(t, "first", m.Candidate.ID)
	})

	t.Run("negative scores still pick a winner", func(t *testing.T) {
		cands := []models.Candidate{
			{ID: "long", Title: "zz", DurationMS: 900000},
			{ID: "longer", Title: "zz", DurationMS: 1800000},
		}
		m, ok := Best(track, cands)
		require.True(t, ok)
		assert.Equal(t, "long", m.Candidate.ID)
	})
}

func TestAccept(t *testing.T) {
	for _, threshold := range []float64{0, 0.25, 0.5, 0.65, 0.99, 1} {
		for _, score := range []float64{-0.5, 0, 0.25, 0.5, 0.65, 0.7, 1, 1.2} {
			got := Accept(Match{Score: score}, threshold)
			assert.Equal(t, score > threshold, got, "score %v threshold %v", score, threshold)
		}
	}
	assert.False(t, Accept(Match{Score: math.NaN()}, 0.5))
}

func TestParseISODuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"PT3M20S", 3*time.Minute + 20*time.Second},
		{"PT1H2M3S", time.Hour + 2*time.Minute + 3*time.Second},
		{"PT45S", 45 * time.Second},
		{"PT4M", 4 * time.Minute},
		{"PT2H", 2 * time.Hour},
		{"PT0S", 0},
		{"P0D", 0},
		{"", 0},
		{"garbage", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseISODuration(tt.in))
		})
	}
}
