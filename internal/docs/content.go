package docs

var topics = []Topic{
	{
		Name:    "quickstart",
		Aliases: []string{"start", "init"},
		Title:   "Quick Start",
		Summary: "Getting started with tome",
		Content: topicQuickstart,
	},
	{
		Name:    "config",
		Aliases: []string{"configuration", "preferences", "settings"},
		Title:   "Configuration Reference",
		Summary: "Config file schema, fields, and defaults",
		Content: topicConfig,
	},
	{
		Name:    "outline",
		Aliases: []string{"sections", "modes"},
		Title:   "Outlines and Sections Files",
		Summary: "Generation modes and the sections file format",
		Content: topicOutline,
	},
	{
		Name:    "pipeline",
		Aliases: []string{"review", "stages"},
		Title:   "Execution Model",
		Summary: "Generate, review/improve, diagrams, append",
		Content: topicPipeline,
	},
	{
		Name:    "resume",
		Aliases: []string{"checkpoint", "status"},
		Title:   "Checkpoints and Resuming",
		Summary: "What is saved, when, and how a resume continues",
		Content: topicResume,
	},
	{
		Name:    "diagrams",
		Aliases: []string{"mermaid", "mmdc"},
		Title:   "Diagram Rendering",
		Summary: "Mermaid extraction, pre-fix, render and repair",
		Content: topicDiagrams,
	},
}

const topicQuickstart = `Quick Start
===========

1. Initialize a project:

    cd your-project
    tome init

   This creates .tome/config.yaml and .tome/sections.yaml.

2. Export an API key for the configured provider:

    export OPENROUTER_API_KEY=...

3. Preview the task plan without calling the backend for content:

    tome run "Go Concurrency" go.md --mode parts --dry-run

4. Generate:

    tome run "Go Concurrency" go.md --lines 3000

5. If the run stops, run the same command again. It resumes from the
   checkpoint beside the output file. Inspect progress with:

    tome status --checkpoint .go.checkpoint.json

6. Check the finished document for truncation and broken fences:

    tome doctor go.md
`

const topicConfig = `Configuration Reference
=======================

tome looks for .tome/config.yaml in the current directory and its parents,
or uses the file given with --config. A missing file means defaults. Every
key is optional.

llm:
  provider: openrouter        # openrouter or openai
  model: openai/gpt-4o-mini
  base-url: ""                # override the provider endpoint
  api-key-env: ""             # defaults to OPENROUTER_API_KEY / OPENAI_API_KEY
  timeout: 2m                 # per request
  max-retries: 3              # transient failures (rate limit, 5xx, timeout)

generation:
  max-iterations: 2           # review/improve rounds per block
  checkpoint-every: 5         # persist the checkpoint every N tasks
  max-task-attempts: 2        # generation attempts before a task is failed
  context-chars: 1500         # size of the prior-content summary
  header: true                # write "# <topic>" once at the top
  preferences:
    audience: beginner        # beginner, intermediate, advanced
    style: progressive        # progressive, direct, reference
    analogies: true           # everyday analogies before formal definitions
    code: true                # false: no code blocks, examples not required
    tables: true              # false: no tables, tables not required
    language: ""              # language for code examples; empty lets the writer choose
    code-examples: 3          # examples asked for, and the checklist minimum

review:
  mode: both                  # local, llm, or both
  min-lines: 60

diagrams:
  enabled: true
  images-dir: images          # relative to the output file's directory
  renderer: mmdc
  renderer-args: ["-b", "transparent"]
  renderer-env: []            # KEY=VALUE pairs, e.g. PUPPETEER_EXECUTABLE_PATH=/usr/bin/chromium
  timeout: 30s                # per render
  fix-attempts: 3             # backend repairs per diagram

Flags on tome run override these values for one run: --iter, --review,
--model, --no-diagrams and --images-dir, and for preferences --audience,
--style, --no-analogies, --no-code, --no-tables, --language and
--code-examples. Preferences are not saved in the checkpoint; a resumed run
uses whatever the config and flags say at that time.

Review modes
------------

local  Structural checklist only: minimum lines, worked examples when
       required, a mermaid diagram when required, a table when required.
       With code or tables disabled, a block containing them fails.
       No backend call.
llm    The backend judges the block and returns issues and suggestions.
both   Checklist and backend findings are merged. If the backend review
       fails, the checklist verdict is used alone.
`

const topicOutline = `Outlines and Sections Files
===========================

The task list is built once, when a run starts without a checkpoint.

Modes (--mode)
--------------

auto    Ask the backend for an outline. Fall back to parts on failure.
llm     Ask the backend for an outline. Fail if it cannot produce one.
parts   Numbered parts. --parts sets the count, otherwise lines/150 with a
        minimum of 5. Every second part asks for a table and every third
        for a diagram.
custom  Read --sections <file>.

Sections file
-------------

YAML or JSON with the same keys:

sections:
  - title: Goroutines
    description: What a goroutine is and how the scheduler runs it
    level: 1
    require-diagram: true
    require-table: false
    require-examples: true

title is required. level defaults to 1 and require-examples to true.

tome outline "Go Concurrency" -o sections.yaml writes an outline in this
format so it can be edited before a custom run.
`

const topicPipeline = `Execution Model
===============

Tasks run strictly in order, one at a time. For each task:

1. Generate. The backend writes the block from the topic, the task, and a
   bounded summary of the blocks before it (titles and excerpts of the
   last three, plus the tail of the previous one). A generation that fails
   is retried up to generation.max-task-attempts times.

2. Review and improve. Up to generation.max-iterations rounds: review the
   block, stop if it passes, otherwise ask the backend to improve it with
   the issues and suggestions. When the rounds run out, the last version
   is kept. Review never fails a task.

3. Diagrams. When diagrams are enabled, or the task requires a diagram,
   every mermaid block is rendered to an image and replaced by an image
   reference. A diagram that cannot be rendered stays as source.

4. Append. The block is appended to the output file in a single write and
   the task is marked complete.

Failures
--------

A task that yields no usable content after its attempts stops the run with
status "incomplete". The failure is recorded on the task and the next run
retries it. A failed write to the output file or checkpoint stops the run
with status "failed". Ctrl-C stops the run between stages with status
"interrupted".

Backend calls are retried with exponential backoff on rate limits,
timeouts and server errors (llm.max-retries). This budget is separate from
the diagram repair budget.
`

const topicResume = `Checkpoints and Resuming
========================

The checkpoint is a JSON file beside the output, .<name>.checkpoint.json by
default (--checkpoint overrides). It holds the topic, the full task list
with each completed block, the index of the next task, the line count and
byte size of the output, and the run status.

It is written:
  - when the run starts
  - every generation.checkpoint-every completed tasks
  - after the final task
  - when the run stops for any reason

Every write replaces the whole file atomically. On success the checkpoint
is removed unless --keep-checkpoint is set.

Resuming
--------

Running tome run again with the same output loads the checkpoint instead
of building a new outline. Completed tasks are never generated or appended
again. If the output grew past the size the checkpoint records (blocks
appended after the last save), that tail is trimmed and those tasks are
regenerated. If the output is shorter than recorded, the run refuses to
continue.

A fresh run refuses to write into an output that already has content
unless --force is given.

tome status shows completed and remaining tasks with their durations.
`

const topicDiagrams = `Diagram Rendering
=================

For every closed mermaid fence in a block:

1. Pre-fix. Deterministic repairs of common generation mistakes:
   "classD" typos, classDef lines without a style, unquoted node labels
   containing special characters, unquoted edge labels, node ids that are
   reserved words (end, graph, subgraph, ...), trailing whitespace.

2. Render. The source is written to <images-dir>/diagram-<task>-<n>-<slug>.mmd
   and rendered to the .png beside it:

    mmdc -i <source> -o <image> -b transparent

   with diagrams.timeout per attempt.

3. Repair. If rendering fails, the source, the renderer's error and the
   surrounding text go to the backend for a corrected diagram, which is
   pre-fixed and rendered again, up to diagrams.fix-attempts times.

4. Replace. Rendered diagrams become image references, applied last to
   first so earlier offsets stay valid. Failed diagrams keep their
   original source and the task still completes.

tome diagrams <file> runs the same steps over an existing document:

    tome diagrams go.md --output go.rendered.md
    tome diagrams go.md --no-fix       # render only, no backend
    tome diagrams go.md --dry-run      # list what would be rendered
`
