// Package animation decides what the avatar does: sentiment-driven
// expression selection, conversational context, transition rules and the
// single playback state machine.
package animation

import (
	"strings"

	"github.com/poblanc/go-avatar/pkg/live2d"
)

// Sentiment labels produced by the analyzer.
const (
	SentimentNeutral  = "neutral"
	SentimentHappy    = "happy"
	SentimentSad      = "sad"
	SentimentExcited  = "excited"
	SentimentAngry    = "angry"
	SentimentConfused = "confused"
)

// sentimentKeywords scores text by keyword hits per sentiment. The highest
// scoring sentiment wins; ties resolve in iteration order, which is fine
// because tied inputs are genuinely ambiguous.
var sentimentKeywords = map[string][]string{
	SentimentHappy: {
		"happy", "joy", "wonderful", "amazing", "great", "awesome",
		"love", "like", "haha", "hehe", "yay",
	},
	SentimentSad: {
		"sad", "sorry", "disappointed", "upset", "hurt", "cry", "tears",
		"sob", "sigh",
	},
	SentimentExcited: {
		"excited", "incredible", "fantastic", "wow", "yatta",
	},
	SentimentAngry: {
		"angry", "mad", "annoyed", "irritated", "furious", "hmph",
	},
	SentimentConfused: {
		"confused", "huh", "what do you mean", "i don't understand",
		"i don't get it",
	},
}

// SentimentAnalyzer scores text against per-sentiment keyword sets.
type SentimentAnalyzer struct{}

// Analyze returns the dominant sentiment and a confidence score. Texts with
// no keyword hits are neutral at 0.5 confidence; otherwise confidence is
// the hit count normalized by text length, capped at 1.
func (SentimentAnalyzer) Analyze(text string) (string, float64) {
	lower := strings.ToLower(text)

	best := SentimentNeutral
	bestScore := 0
	for _, sentiment := range []string{
		SentimentHappy, SentimentSad, SentimentExcited,
		SentimentAngry, SentimentConfused,
	} {
		score := 0
		for _, kw := range sentimentKeywords[sentiment] {
			score += strings.Count(lower, kw)
		}
		if score > bestScore {
			best = sentiment
			bestScore = score
		}
	}

	if bestScore == 0 {
		return SentimentNeutral, 0.5
	}

	words := float64(len(strings.Fields(text)))
	norm := words * 0.1
	if norm < 1 {
		norm = 1
	}
	confidence := float64(bestScore) / norm
	if confidence > 1 {
		confidence = 1
	}
	return best, confidence
}

// MapSentimentToExpression converts a sentiment label to a model
// expression.
func MapSentimentToExpression(sentiment string) string {
	switch sentiment {
	case SentimentHappy:
		return live2d.ExpressionHappy
	case SentimentSad:
		return live2d.ExpressionSad
	case SentimentExcited:
		return live2d.ExpressionSurprised
	case SentimentAngry:
		return live2d.ExpressionAngry
	case SentimentConfused:
		return live2d.ExpressionSurprised
	default:
		return live2d.ExpressionNeutral
	}
}

var emotionalKeywords = []string{
	"love", "hate", "amazing", "terrible", "wonderful", "awful",
	"excited", "scared", "angry", "happy", "sad",
}

var personalPronouns = map[string]bool{
	"i": true, "me": true, "my": true, "mine": true,
	"you": true, "your": true, "yours": true,
	"we": true, "us": true, "our": true,
}

// AnalyzeUserEngagement estimates how invested the user is in the
// conversation from a single input. Longer, questioning, emotionally loaded
// and personal messages score higher.
func AnalyzeUserEngagement(text string) float64 {
	score := 0.5
	lower := strings.ToLower(text)

	if len(text) > 50 {
		score += 0.2
	}
	if len(text) > 100 {
		score += 0.1
	}
	if strings.Contains(text, "?") {
		score += 0.1
	}
	for _, kw := range emotionalKeywords {
		if strings.Contains(lower, kw) {
			score += 0.05
		}
	}
	for _, w := range strings.Fields(lower) {
		if personalPronouns[strings.Trim(w, ".,!?;:'\"")] {
			score += 0.03
		}
	}

	if score < 0.1 {
		score = 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
