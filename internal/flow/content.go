package flow

import "github.com/BTreeMap/CareBear/internal/models"

// exerciseScript is the fixed content of one exercise. Steps are 1-based; a
// step missing from the map marks completion.
type exerciseScript struct {
	Name      string
	Opening   string
	Rationale string
	Steps     map[int]string
}

var exerciseScripts = map[models.ExerciseKind]exerciseScript{
	models.ExerciseGrounding: {
		Name:      "grounding",
		Opening:   "Let's try the 5-4-3-2-1 grounding exercise together. Take a slow breath, and send me anything when you're ready to start.",
		Rationale: "Grounding moves attention from distressing thoughts to what your senses notice right now.",
		Steps: map[int]string{
			1: "Look around you and name 5 things you can see.",
			2: "Now notice 4 things you can physically feel, like your feet on the floor or the fabric of your clothes.",
			3: "Listen carefully and name 3 things you can hear.",
			4: "Next, find 2 things you can smell, or two smells you like.",
			5: "Finally, name 1 thing you can taste right now.",
		},
	},
	models.ExerciseBreathing: {
		Name:      "paced breathing",
		Opening:   "Let's do some paced breathing. Sit comfortably and let your shoulders drop. Send me anything when you're ready to begin.",
		Rationale: "Slow, even breathing signals safety to the body and lowers physical arousal.",
		Steps: map[int]string{
			1: "Breathe in slowly through your nose for a count of 4.",
			2: "Gently hold that breath for a count of 4.",
			3: "Now breathe out slowly through your mouth for a count of 4.",
			4: "Hold again for a count of 4, then let your breathing settle into its own rhythm.",
		},
	},
	models.ExerciseReframing: {
		Name:      "reframing",
		Opening:   "Let's try reframing a difficult thought. We'll look at it one step at a time, and there are no wrong answers. Ready when you are.",
		Rationale: "Examining the evidence for and against a thought helps loosen its grip and find a more balanced view.",
		Steps: map[int]string{
			1: "What's the thought that has been bothering you the most?",
			2: "What evidence do you have that supports this thought?",
			3: "What evidence doesn't fit with it, even a little?",
			4: "If a close friend told you they had this thought, what would you say to them?",
			5: "Putting all of that together, how could you restate the thought in a more balanced way?",
		},
	},
}

const (
	closingMessage   = "Well done for finishing that exercise. Take a moment to notice how you feel now."
	closingRationale = "Pausing after an exercise helps you notice any shift in how you feel."
	closingFollowUp  = "Would you like to try a different exercise, like %s?"
)

// moodReply is one entry of a mood-keyed pool.
type moodReply struct {
	Message   string
	Rationale string
	FollowUp  string
}

var moodPools = map[models.MoodLabel][]moodReply{
	models.MoodSad: {
		{
			Message:   "I hear how heavy things feel right now. You're not alone in this.",
			Rationale: "Empathetic validation builds trust and emotional safety.",
			FollowUp:  "Would you like to try a grounding exercise together?",
		},
		{
			Message:   "That sounds really hard. I'm here with you.",
			Rationale: "Acknowledging pain without judgement makes it easier to talk about.",
			FollowUp:  "Would a short grounding exercise help right now?",
		},
		{
			Message:   "It's okay to feel low. Thank you for telling me how you're doing.",
			Rationale: "Normalising difficult feelings reduces the shame that can come with them.",
			FollowUp:  "Would you like to try grounding, or would you rather just talk?",
		},
	},
	models.MoodAnxious: {
		{
			Message:   "I can sense the worry in your words. Let's slow things down together.",
			Rationale: "Slowing down helps regulate breathing and reduce anxious energy.",
			FollowUp:  "Shall we try grounding, paced breathing, or reframing?",
		},
		{
			Message:   "Anxiety can feel intense. I'm here to help you find some calm.",
			Rationale: "Reassurance helps the nervous system feel safe.",
			FollowUp:  "Shall we try grounding, paced breathing, or reframing?",
		},
	},
	models.MoodAngry: {
		{
			Message:   "I hear you. It's okay to feel angry.",
			Rationale: "Naming anger without judgement makes it easier to work with.",
			FollowUp:  "Would a few slow breaths help before we talk it through?",
		},
		{
			Message:   "That sounds really frustrating. Your feelings make sense.",
			Rationale: "Validation lowers the intensity of anger so it can be explored.",
			FollowUp:  "Would you like to try reframing what happened?",
		},
	},
	models.MoodHappy: {
		{
			Message:   "That's wonderful to hear!",
			Rationale: "Celebrating positive moments reinforces wellbeing.",
			FollowUp:  "What's been the best part of your day?",
		},
		{
			Message:   "I'm so glad you're feeling this way!",
			Rationale: "Positive reinforcement helps strengthen good moods.",
			FollowUp:  "What do you think helped you feel like this?",
		},
	},
	models.MoodNeutral: {
		{
			Message:   "I'm here with you. Tell me more about what's been on your mind.",
			Rationale: "Open questions encourage self-expression.",
		},
		{
			Message:   "Thanks for sharing. I'm listening.",
			Rationale: "Reflective listening helps you feel heard.",
			FollowUp:  "How are you feeling right now?",
		},
	},
}

var (
	acknowledgmentReply = models.ResponseRecord{
		Message:   "You're very welcome. I'm here whenever you want to keep talking.",
		Rationale: "Acknowledging your words keeps the conversation at your pace.",
		Kind:      models.KindAcknowledgment,
	}
	uncertaintyReply = models.ResponseRecord{
		Message:   "That's completely okay. There's no rush, and we can take this at whatever pace feels right.",
		Rationale: "Uncertainty is normal; giving space avoids pushing you before you're ready.",
		Kind:      models.KindAcknowledgment,
	}
	declineReply = models.ResponseRecord{
		Message:   "No worries, let's just talk. What's on your mind?",
		Rationale: "Respecting a no keeps the conversation safe and in your control.",
		Kind:      models.KindDecline,
	}
	choiceReply = models.ResponseRecord{
		Message:   "Hi, I'm CareBear. Would you like to talk about what's on your mind, or try something calming?",
		Rationale: "Offering a choice lets you decide what kind of support you need.",
		Kind:      models.KindStage,
	}
	talkReply = models.ResponseRecord{
		Message:   "I'm listening. Take your time and tell me whatever feels right.",
		Rationale: "Open space to talk helps you put feelings into words.",
		Kind:      models.KindStage,
	}
	pickExerciseReply = models.ResponseRecord{
		Message:   "Here are a few things we can try: 1) grounding, 2) paced breathing, 3) reframing. Which would you like?",
		Rationale: "Choosing the technique yourself makes it more likely to help.",
		Kind:      models.KindStage,
	}
	resumeReply = models.ResponseRecord{
		Message:   "Thank you for letting me know. I'm glad you're still here, and I'm here with you. How are you feeling right now?",
		Rationale: "Checking in gently after a difficult moment helps rebuild a sense of safety.",
		Kind:      models.KindStage,
	}
)

var smallTalkReplies = []moodReply{
	{
		Message:   "The weather can really shape how a day feels.",
		Rationale: "Reflecting small talk keeps the conversation easy and open.",
		FollowUp:  "How is it affecting your mood today?",
	},
	{
		Message:   "It's funny how much the weather can change our energy.",
		Rationale: "Linking everyday details to feelings can make them easier to notice.",
		FollowUp:  "Has it had any effect on how you're feeling?",
	},
}
