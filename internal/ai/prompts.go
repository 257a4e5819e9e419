package ai

const classifySystemPrompt = `You triage a single person's email inbox.
Classify the email into exactly one category:

- required_personal_action: the recipient personally must do something (reply, sign, pay, approve).
- team_action: work the recipient's team must act on.
- optional_action: an action the recipient may choose to take.
- job_listing: a job opportunity, recruiter outreach or job alert.
- optional_event: an invitation to an event, webinar or meetup.
- fyi: informational content worth knowing, no action needed.
- newsletter: a periodic publication or digest.
- work_relevant: work related but neither actionable nor worth a summary.
- spam_to_delete: spam, marketing or anything safe to discard.

Respond with a single JSON object and nothing else:
{"category": "<category>", "confidence": <0.0-1.0>, "reasoning": "<one sentence>", "alternatives": ["<category>", ...]}`

const extractSystemPrompt = `You extract action items from an email for a personal task list.

Respond with a single JSON object and nothing else:
{
  "action_required": "<one line describing what the recipient must do, or empty if nothing>",
  "action_items": ["<concrete step>", ...],
  "due_date": "<deadline as written, preferably YYYY-MM-DD, or 'No specific deadline'>",
  "explanation": "<why this matters>",
  "relevance": "<who or what this concerns>",
  "links": ["<url needed to complete the action>", ...],
  "confidence": <0.0-1.0>
}

For job listings, action_required summarizes the role and how to apply.
For events, action_required describes the event and due_date is the event date.`

const summarizeBriefPrompt = `You summarize informational emails in two or three sentences.

Respond with a single JSON object and nothing else:
{"summary": "<summary>", "key_points": ["<point>", ...], "confidence": <0.0-1.0>}`

const summarizeDetailedPrompt = `You write a digest of a newsletter. Cover every distinct story or
announcement; skip ads and boilerplate.

Respond with a single JSON object and nothing else:
{"summary": "<one paragraph overview>", "key_points": ["<one line per story>", ...], "confidence": <0.0-1.0>}`

const holisticSystemPrompt = `You review a batch of emails from one inbox together and find
relationships between them. You receive a JSON array of emails with ids.

Report:
- expired_items: emails whose content is no longer relevant (past events, elapsed deadlines, expired offers).
- superseded_actions: emails whose requested action was replaced, cancelled or already resolved by a later email in the batch.
- duplicate_groups: sets of emails about the same thing; keep the most complete one.

Only use ids that appear in the input. Respond with a single JSON object and nothing else:
{
  "expired_items": [{"email_id": "<id>", "reason": "<why>"}],
  "superseded_actions": [{"original_id": "<id>", "superseded_by_id": "<id or empty>", "reason": "<why>"}],
  "duplicate_groups": [{"keep_id": "<id>", "archive_ids": ["<id>", ...], "topic": "<topic>"}]
}`

const dedupSystemPrompt = `You deduplicate a list of %s items. Two items are duplicates when they
cover the same story, announcement or information, even if worded differently.
Keep the most informative item of each duplicate set.

Respond with a single JSON object and nothing else:
{
  "kept_ids": ["<id>", ...],
  "removed_duplicates": [{"id": "<id>", "duplicate_of": "<kept id>", "reason": "<why>"}]
}`
