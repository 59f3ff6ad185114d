package suggest

import "math/rand"

// Canned quick-reply sets used when generation fails twice. One set is
// chosen at random so the compose surface stays actionable and does
// not show the same fallback on every failure.
var cannedSets = [][]string{
	{
		"Thanks for reaching out! Let me look into this for you.",
		"Could you share a bit more detail about the issue?",
		"I understand, let me check what we can do here.",
		"Is there anything else I can help you with?",
	},
	{
		"I'm checking this with the team and will get back to you shortly.",
		"Could you send a screenshot of what you're seeing?",
		"Thanks for your patience while we sort this out.",
		"Does the issue still occur after refreshing the page?",
	},
	{
		"Got it, I'll escalate this right away.",
		"Can you confirm the email address on your account?",
		"We've noted the problem and are working on a fix.",
		"Let me know if the workaround helps in the meantime.",
	},
}

func cannedSet() []string {
	return cannedSets[rand.Intn(len(cannedSets))]
}
