// Package filewatch reports changes to individual files.
//
// The parent directory is watched rather than the file itself, so a file
// replaced through write-then-rename (as the session store does) keeps
// producing events.
package filewatch
