package warmup

import "math/rand"

var subjects = []string{
	"Quick question about our meeting",
	"Following up on last week",
	"Re: Project update",
	"Can you review this?",
	"Thanks for sending that over",
	"Checking in",
	"Are we still on for Thursday?",
	"FYI - updated the document",
	"Re: Schedule change",
	"Got a minute?",
}

var bodies = []string{
	"Hey, just wanted to follow up on our conversation. Let me know your thoughts when you get a chance!",
	"Thanks for getting back to me. I'll review and send my feedback by EOD.",
	"Sounds good! I'll loop in the team and we can discuss next steps.",
	"Great, I've updated the spreadsheet with the latest numbers. Take a look when you get a chance.",
	"Perfect, let's plan to meet next week. What day works best for you?",
	"Just checking in on this. Any updates on your end?",
	"Appreciate the quick response. I'll get back to you shortly.",
	"Noted. I'll make the changes and share the updated version tomorrow.",
}

var replies = []string{
	"Sounds good, thanks!",
	"Got it, will do!",
	"Thanks for the update!",
	"Perfect, I'll take a look.",
	"Appreciated! Talk soon.",
	"Great, looking forward to it!",
	"Will check and get back to you.",
	"Thanks! See you then.",
}

func pick(rng *rand.Rand, pool []string) string {
	return pool[rng.Intn(len(pool))]
}

func paragraph(text string) string {
	return "<p>" + text + "</p>"
}
