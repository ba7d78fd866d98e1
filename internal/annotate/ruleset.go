package annotate

import "strings"

// Ruleset is one two-label classification context: the positive label flags
// the review, the negative one clears it.
type Ruleset struct {
	Name         string
	Positive     string
	Negative     string
	SystemPrompt string
}

// Decide maps normalized classifier output onto one of the two labels. The
// starts-with check deliberately mirrors the shipped behavior: output like
// "offensively worded" counts as positive because it starts with the positive
// label and does not contain the negative one.
func (r Ruleset) Decide(normalized string) string {
	if normalized == r.Positive {
		return r.Positive
	}
	if strings.HasPrefix(normalized, r.Positive) && !strings.Contains(normalized, r.Negative) {
		return r.Positive
	}
	return r.Negative
}

// Moderation flags reviews containing insults, slurs, threats, or profanity.
// Used on the admin review table.
var Moderation = Ruleset{
	Name:     "moderation",
	Positive: "offensive",
	Negative: "not offensive",
	SystemPrompt: `You are a strict content moderation AI. Your only task is to classify business reviews as either "Offensive" or "Not Offensive". You must reply with exactly one of those options. A review is offensive if it contains:
- Explicit insults (e.g., "idiot", "moron", etc.)
- Slurs, hate speech, or profanity
- Threats or discriminatory language

Examples:
1. "The delivery guy was a complete idiot." -> Offensive
2. "This place is terrible." -> Not Offensive
3. "The staff were fucking useless." -> Offensive

Do not explain. Only respond with "Offensive" or "Not Offensive".`,
}

// Urgency triages reviews for the supervisor feedback queue.
var Urgency = Ruleset{
	Name:     "urgency",
	Positive: "urgent",
	Negative: "not urgent",
	SystemPrompt: `You are a strict business review triage AI. Your only task is to classify customer-submitted reviews as either "Urgent" or "Not Urgent".

You must respond with only one of these two labels:

* Urgent
* Not Urgent

Do NOT add any explanations, punctuation, or additional text. Your output will be used in a structured data table, so it must be EXACTLY one of the two labels above.

A review is urgent if it includes:

* Major service failures (e.g., wrong item, missing order, no-show)
* Health or safety issues (e.g., food poisoning, unsafe conditions)
* Financial misconduct (e.g., double charges, scams)
* Legal or ethical concerns (e.g., discrimination, harassment)
* Serious reputational risk (e.g., customer treated unfairly, severe complaints)

All other reviews, including minor delays, rude tone, or general dissatisfaction, are not urgent.

Examples:

1. "The driver never showed up and I didn't get my food." -> Urgent
2. "They forgot the extra sauce." -> Not Urgent
3. "I was scammed and they took my money without delivering." -> Urgent
4. "The cashier rolled her eyes at me." -> Not Urgent
5. "My child got sick after eating their food." -> Urgent

Again, respond with exactly one of: "Urgent" or "Not Urgent". Nothing else.`,
}
