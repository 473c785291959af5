package mcpserver

// CommitFormatContract describes how commit messages carry journal
// metadata, for LLM consumers writing commits or reading reports.
const CommitFormatContract = `# Journal Commit Message Format

A commit shows up in the work journal when its message carries a meta line.

## Structure

` + "```" + `text
Fix login redirect                 <- line 1: entry name
[1][30][done]                      <- line 2: meta line
Longer description, any number     <- line 3+: description
of lines.
` + "```" + `

Blank lines are ignored when counting lines.

## Meta line

1. Bracketed tokens are read left to right.
2. A token without digits is the **status** (the last one wins).
3. A token with one or two numbers adds to the **duration**: each number
   shifts the running value by 60 and is added, so ` + "`[1][30]`" + ` is 90
   minutes and ` + "`[1:30]`" + ` is 90 minutes too.
4. A token with three or more numbers is ignored.
5. Commits without a duration are left out of the journal.

## Exceptions

Entries can be corrected without rewriting history:

- ` + "`patch_commit`" + ` replaces the entry of one commit (matched by sha,
  case-insensitive). A patch whose commit is outside the report range is
  reported as an orphan and not counted.
- ` + "`add_commitless_entry`" + ` adds work that has no commit behind it.
- ` + "`update_exception`" + ` edits a stored patch or commitless entry.

Dates accept RFC 3339, ` + "`2006-01-02T15:04`" + ` and ` + "`2006-01-02`" + ` (UTC).
Durations are minutes and must not be negative.
`
