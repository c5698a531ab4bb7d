// Package console multiplexes the text output of concurrent workers onto one
// host UI.
//
// Every worker writes through its own WorkerUI. Writes are serialized by a
// shared State so that no worker corrupts another's partial line, and every
// line a worker starts is prefixed with its header:
//
//	[Task 1]: compiling
//	[Task 2]: downloading
//	[Task 1]: (...) done
//
// When a worker's partial line is interrupted by another worker, the
// multiplexer forces a line break first; when the interrupted worker resumes,
// its continuation carries the "(...) " marker.
//
// Structured records (WriteInformation, WriteProgress) and non-textual prompts
// (PromptForChoice, PromptForCredential) pass through unmodified and leave the
// line state untouched.
package console
