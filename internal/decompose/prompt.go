package decompose

// DecomposePrompt is the default template for splitting a task into
// subtasks. The oracle is expected to wrap each subtask in <task> tags.
const DecomposePrompt = `You are a task planner. Break the following task into
smaller, self-contained subtasks that can each be completed independently by
a single worker, assuming earlier subtasks in your list are finished first.

Task:
%s

List the subtasks in execution order. Wrap each subtask in <task></task>
tags, with the full instruction text inside the tags. Produce nothing else.`

// EvolvePrompt is the default template for refining a task into a single
// improved replacement.
const EvolvePrompt = `You are a task planner. Rewrite the following task so
that it is more specific, unambiguous, and actionable, without changing its
intent.

Task:
%s

Respond with exactly one refined task wrapped in <task></task> tags.`
