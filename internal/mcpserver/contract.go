package mcpserver

// DirectiveContract describes the directive language that LLM consumers
// should follow when writing directives into notes.
const DirectiveContract = `# Ansuz Directive Language

A directive is a bracketed expression embedded in note content. Rendering
a note replaces each directive with its evaluated value.

## Syntax

` + "```" + `
[add(1, 2)]                              # call with positional arguments
[find(path: "projects")]                 # named arguments
[upper trim "  x "]                      # bare names nest right to left
[.name] [.up.path] [.root.name]          # current note and its ancestors
[x = 10; f = [add(i, x)]; f(5)]          # statements, variables, implicit lambda
[(a, b)[multiply(a, b)](6, 7)]           # explicit lambda
[list(1, 2, 3).map([multiply(i, 2)])]    # method calls
[.path = "archive"]                      # mutate the current note
[button("Done", later .path = "done")]   # deferred action
[once[datetime]]                         # evaluated once, then kept
[refresh[time]]                          # re-evaluated on a schedule
[refresh(every(5), daily("09:00"))[time]]
[match(pattern(digit*4 "-" digit*2), "2026-01")]
[view(find(path: "projects"))]           # embed rendered notes
` + "```" + `

## Rules

1. **Wiki links are not directives.** ` + "`" + `[[note]]` + "`" + ` is left untouched.
2. **Strings** use double quotes; escape with a backslash.
3. **Current date and time** (` + "`" + `date` + "`" + `, ` + "`" + `time` + "`" + `, ` + "`" + `datetime` + "`" + `) must be wrapped in
   ` + "`" + `once[...]` + "`" + ` or ` + "`" + `refresh[...]` + "`" + `; anywhere else they are a validation error.
4. **Mutations** (assignments to note properties, ` + "`" + `append` + "`" + `) run every time the
   directive is evaluated; prefer ` + "`" + `button(..., later ...)` + "`" + ` for one-off actions.
5. **Note properties:** ` + "`" + `id` + "`" + `, ` + "`" + `name` + "`" + ` (first line), ` + "`" + `body` + "`" + `, ` + "`" + `content` + "`" + `, ` + "`" + `path` + "`" + `,
   ` + "`" + `created` + "`" + `, ` + "`" + `modified` + "`" + `, ` + "`" + `viewed` + "`" + `, ` + "`" + `up` + "`" + `, ` + "`" + `up(n)` + "`" + `, ` + "`" + `root` + "`" + `, ` + "`" + `children` + "`" + `.
6. **Errors** render as ` + "`" + `<type>: <message>` + "`" + `. Use ` + "`" + `evaluate_directive` + "`" + ` to check a
   directive before writing it into a note.
`
