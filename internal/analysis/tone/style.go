package tone

import "github.com/zhouzirui/haven/backend/internal/analysis/emotion"

// ResponseStyle tells the chat companion how to pitch its reply.
type ResponseStyle struct {
	Pace     string `json:"pace"`
	Warmth   string `json:"warmth"`
	Length   string `json:"length"`
	Guidance string `json:"guidance"`
}

var styles = map[emotion.Label]ResponseStyle{
	emotion.Excited: {Pace: "lively", Warmth: "bright", Length: "medium",
		Guidance: "Match their energy, celebrate with them, and help them savour what is going well."},
	emotion.Happy: {Pace: "moderate", Warmth: "bright", Length: "medium",
		Guidance: "Reflect their good mood back and invite them to notice what contributed to it."},
	emotion.Calm: {Pace: "slow", Warmth: "warm", Length: "medium",
		Guidance: "Keep the calm tone, speak gently, and leave room for reflection."},
	emotion.Neutral: {Pace: "moderate", Warmth: "warm", Length: "medium",
		Guidance: "Be clear and friendly, and ask an open question about how they are really doing."},
	emotion.Sad: {Pace: "slow", Warmth: "gentle", Length: "brief",
		Guidance: "Validate the feeling before anything else, avoid quick fixes, and offer presence."},
	emotion.Tired: {Pace: "slow", Warmth: "gentle", Length: "brief",
		Guidance: "Keep it short and low-effort, acknowledge the fatigue, and suggest rest without pressure."},
	emotion.Anxious: {Pace: "slow", Warmth: "gentle", Length: "brief",
		Guidance: "Use short grounding sentences, offer one breathing or grounding step, and avoid long lists."},
	emotion.Angry: {Pace: "slow", Warmth: "warm", Length: "brief",
		Guidance: "Stay steady and non-defensive, name the frustration, and do not argue or lecture."},
	emotion.Stressed: {Pace: "moderate", Warmth: "warm", Length: "brief",
		Guidance: "Acknowledge the load, help break things into one small next step, and keep it concrete."},
}

var recommendations = map[emotion.Label][]string{
	emotion.Excited: {
		"Write down what is exciting you so you can come back to it later.",
		"Channel the energy into a short walk or a task you have been putting off.",
	},
	emotion.Happy: {
		"Add this moment to your gratitude journal.",
		"Share the good news with someone you care about.",
		"Try an upbeat playlist to keep the momentum going.",
	},
	emotion.Calm: {
		"This is a good time for a short mindfulness session.",
		"Note what helped you feel settled today.",
	},
	emotion.Neutral: {
		"Take a quick mood check-in to track how your day unfolds.",
		"A two-minute breathing pause can help you tune in to how you feel.",
	},
	emotion.Sad: {
		"Be gentle with yourself; reach out to someone you trust.",
		"Try writing down what is weighing on you in your journal.",
		"Open your hope jar and read something that lifted you before.",
	},
	emotion.Tired: {
		"Consider a short rest or an early night.",
		"Drink some water and step away from screens for a few minutes.",
		"Try a sleep or wind-down playlist.",
	},
	emotion.Anxious: {
		"Try box breathing: in for 4, hold for 4, out for 4, hold for 4.",
		"Ground yourself by naming five things you can see around you.",
		"Listen to a calming track from the music library.",
	},
	emotion.Angry: {
		"Step away for a moment and take ten slow breaths.",
		"Write out what happened in a CBT worksheet to untangle the thoughts.",
	},
	emotion.Stressed: {
		"Pick one small task and set the rest aside for now.",
		"Try a five-minute progressive muscle relaxation.",
		"Listen to a calming track while you reset.",
	},
}

// StyleFor returns the reply style for a label.
func StyleFor(label emotion.Label) ResponseStyle {
	if s, ok := styles[label]; ok {
		return s
	}
	return styles[emotion.Neutral]
}

// Recommendations returns a copy of the suggestions for a label.
func Recommendations(label emotion.Label) []string {
	recs, ok := recommendations[label]
	if !ok {
		recs = recommendations[emotion.Neutral]
	}
	return append([]string(nil), recs...)
}
