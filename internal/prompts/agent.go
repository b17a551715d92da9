package prompts

// RoundsExhaustedFallback is the reply used when the model kept
// calling tools until the round limit and never wrote a message.
const RoundsExhaustedFallback = "I've applied those updates to the plan. Tell me what you'd like to do next."

// EmptyResponseFallback is the reply used when the model returned no
// content and no tool intent was recognized.
const EmptyResponseFallback = "I'm not sure what to change yet. Tell me what you'd like to do next: add tasks, budget items, participants, or ask me to find places."
