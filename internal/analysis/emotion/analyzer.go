package emotion

import (
	"strings"
)

// Label is an emotion tag shared by chat, journal and voice analysis.
type Label string

const (
	Neutral  Label = "neutral"
	Happy    Label = "happy"
	Excited  Label = "excited"
	Calm     Label = "calm"
	Sad      Label = "sad"
	Tired    Label = "tired"
	Anxious  Label = "anxious"
	Angry    Label = "angry"
	Stressed Label = "stressed"
)

// Labels lists every label in a stable order.
var Labels = []Label{Excited, Happy, Calm, Neutral, Sad, Tired, Anxious, Angry, Stressed}

// ParseLabel normalizes raw and reports whether it is a known label.
func ParseLabel(raw string) (Label, bool) {
	l := Label(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Labels {
		if l == known {
			return l, true
		}
	}
	return "", false
}

// Decision is the outcome of keyword scoring. Scale is a 1..5 intensity.
type Decision struct {
	Emotion Label
	Scale   float32
	Score   int
}

// Point is a position in valence/arousal/dominance space.
// Valence is in [-1,1]; arousal and dominance are in [0,1].
type Point struct {
	Valence   float64 `json:"valence"`
	Arousal   float64 `json:"arousal"`
	Dominance float64 `json:"dominance"`
}

var anchors = map[Label]Point{
	Neutral:  {Valence: 0, Arousal: 0.45, Dominance: 0.5},
	Happy:    {Valence: 0.7, Arousal: 0.55, Dominance: 0.65},
	Excited:  {Valence: 0.75, Arousal: 0.85, Dominance: 0.7},
	Calm:     {Valence: 0.45, Arousal: 0.2, Dominance: 0.6},
	Sad:      {Valence: -0.65, Arousal: 0.3, Dominance: 0.3},
	Tired:    {Valence: -0.3, Arousal: 0.12, Dominance: 0.35},
	Anxious:  {Valence: -0.55, Arousal: 0.75, Dominance: 0.25},
	Angry:    {Valence: -0.7, Arousal: 0.85, Dominance: 0.75},
	Stressed: {Valence: -0.45, Arousal: 0.7, Dominance: 0.35},
}

// Anchor returns the typical VAD position of a label.
func Anchor(label Label) Point {
	if p, ok := anchors[label]; ok {
		return p
	}
	return anchors[Neutral]
}

var keywordBuckets = map[Label][]string{
	Happy: {
		"happy", "glad", "grateful", "thankful", "thanks", "thank you", "good day", "proud", "joy",
		"smile", "love", "wonderful", "great", "nice", "content", "pleased", "lol", "haha",
	},
	Excited: {
		"excited", "can't wait", "cant wait", "amazing", "awesome", "thrilled", "pumped", "wow",
		"incredible", "so good", "best day", "hyped", "ecstatic",
	},
	Calm: {
		"calm", "relaxed", "peaceful", "at ease", "rested", "grounded", "serene", "breathe",
		"gentle", "quiet", "settled", "okay now", "better now",
	},
	Sad: {
		"sad", "down", "depressed", "lonely", "alone", "cry", "crying", "tears", "heartbroken",
		"miss", "grief", "empty", "hurt", "upset", "unhappy", "lost",
	},
	Tired: {
		"tired", "exhausted", "drained", "sleepy", "worn out", "burned out", "burnt out",
		"fatigue", "no energy", "can't sleep", "insomnia", "weary",
	},
	Anxious: {
		"anxious", "anxiety", "worried", "worry", "nervous", "panic", "scared", "afraid", "fear",
		"uneasy", "on edge", "overthinking", "what if", "dread",
	},
	Angry: {
		"angry", "mad", "furious", "rage", "annoyed", "irritated", "frustrated", "pissed",
		"hate", "fed up", "resent",
	},
	Stressed: {
		"stressed", "stress", "overwhelmed", "pressure", "deadline", "too much", "swamped",
		"can't cope", "cant cope", "behind on", "tense", "burden",
	},
}

var punctuationBoost = map[Label]int{
	Happy:   2,
	Excited: 3,
}

// Analyze infers the emotion of a turn. The assistant text wins when it is
// clearly emotional; otherwise the user's emotion decides.
func Analyze(userUtterance, aiUtterance string) Decision {
	userScore := scoreText(userUtterance)
	aiScore := scoreText(aiUtterance)

	final := userScore
	if final.Score == 0 && aiScore.Score > 0 {
		final = aiScore
	}
	if final.Score == 0 {
		return Decision{Emotion: Neutral, Scale: 3, Score: 0}
	}

	scale := 2 + float32(final.Score)/4
	if final.Emotion == Excited {
		scale++
	}
	if final.Emotion == Calm || final.Emotion == Tired {
		scale = min(scale, 3.5)
	}
	scale = max(1, min(5, scale))

	return Decision{Emotion: final.Emotion, Scale: scale, Score: final.Score}
}

// Detect scores a single text, returning Neutral with Score 0 when nothing matches.
func Detect(text string) Decision {
	return Analyze(text, "")
}

func scoreText(text string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return Decision{Emotion: Neutral}
	}
	padded := " " + tokenize(normalized) + " "

	scores := make(map[Label]int)
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			if strings.Contains(padded, " "+word+" ") {
				scores[label] += 3
			}
		}
	}

	if exclamations := strings.Count(text, "!"); exclamations > 0 && (scores[Happy] > 0 || scores[Excited] > 0) {
		scores[Excited] += exclamations * punctuationBoost[Excited]
		if exclamations == 1 {
			scores[Happy] += punctuationBoost[Happy]
		}
	}

	best := Decision{Emotion: Neutral}
	for _, label := range Labels {
		if s := scores[label]; s > best.Score {
			best = Decision{Emotion: label, Score: s}
		}
	}
	return best
}

// tokenize collapses punctuation to spaces so keywords match on word boundaries.
func tokenize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '\'':
			b.WriteRune(r)
		case r == '’':
			b.WriteRune('\'')
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
