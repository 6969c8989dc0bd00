package ai

import (
	"strings"

	"github.com/zhouzirui/haven/backend/internal/analysis/emotion"
)

var cannedReplies = map[emotion.Label]string{
	emotion.Happy:    "That's really good to hear. What do you think made today feel this way?",
	emotion.Excited:  "I can feel your excitement! Tell me more about what's got you so energised.",
	emotion.Calm:     "It sounds like you're in a steady place right now. Would you like to stay with that feeling for a moment?",
	emotion.Sad:      "I'm sorry you're feeling this way. It makes sense to feel low sometimes, and I'm here to listen. What's been weighing on you?",
	emotion.Tired:    "It sounds like you're running on empty. Be gentle with yourself today. Is there one small thing that would help you rest?",
	emotion.Anxious:  "That sounds really unsettling. Let's slow down together: try breathing in for four counts and out for six. What feels most pressing right now?",
	emotion.Angry:    "It makes sense to feel frustrated about that. Do you want to tell me what happened?",
	emotion.Stressed: "That's a lot to carry at once. What's one thing on your plate we could look at together?",
	emotion.Neutral:  "Thanks for sharing that with me. How are you feeling about it?",
}

const crisisReply = "I'm really glad you told me, and I'm taking what you said seriously. You deserve support right now. " +
	"Please reach out to someone who can help straight away:"

// FallbackReply is the canned answer used without a chat model. The voice
// tone takes precedence over the text emotion when it is present.
func FallbackReply(rc ReplyContext) string {
	if c := rc.Crisis; c != nil && c.Detected {
		var b strings.Builder
		b.WriteString(crisisReply)
		for _, r := range c.Resources {
			b.WriteString("\n- ")
			b.WriteString(r.Name)
			b.WriteString(": ")
			b.WriteString(r.Contact)
		}
		return b.String()
	}

	label := emotion.Neutral
	if rc.Guidance != nil && rc.Guidance.Decision.Emotion != "" {
		label = rc.Guidance.Decision.Emotion
	}
	if rc.Tone != nil && rc.Tone.Label != "" {
		label = rc.Tone.Label
	}

	if reply, ok := cannedReplies[label]; ok {
		return reply
	}
	return cannedReplies[emotion.Neutral]
}
