package mcpserver

// NoteFormatContract describes how notes are stored and searched, for LLM
// consumers calling the notelog tools.
const NoteFormatContract = `# notelog Note Format

A note is one line of free text identified by its timestamp (whole seconds
since the Unix epoch, UTC). Timestamps are unique per backend: a note saved
in a second that is already taken is stored one second later.

## Text file layout

` + "```" + `
==========
2013-07-11T00:00:00
[Thu Jul 11 00:00:00 2013] today: this is a simple test #yolo
[Thu Jul 11 00:05:12 2013] todo: write the report
` + "```" + `

Each day section starts with a ` + "`==========`" + ` line and the date. Note lines are
` + "`[<UTC timestamp>] <text>`" + `. Keep each note on a single line.

## Capture rules

1. ` + "`add_note`" + ` without a timestamp records the current second and prefixes the
   text with ` + "`today: `" + `.
2. Notes starting with ` + "`todo:`" + `, ` + "`todone[N]:`" + `, or consisting only of ` + "`lunch`" + ` or
   ` + "`slunch`" + ` are stored without the prefix.
3. Hashtags (` + "`#project-x`" + `) are indexed both as the tag and as its plain words.

## Search syntax

- Every term must appear as a whole word (case-insensitive).
- ` + "`!term`" + ` excludes notes containing the word.
- ` + "`#tag`" + ` matches the hashtag.
- ` + "`date:today`" + `, ` + "`date:yesterday`" + `, ` + "`date:<epoch>`" + `, ` + "`2013-07-11`" + ` or ` + "`07/11/2013`" + `
  restrict results to one UTC day.

## Example

` + "```" + `
search_notes  query="this !yolo date:2015-12-22"
add_note      text="lunch"
delete_note   timestamp=1373500800
` + "```" + `
`
