// Package archive keeps a durable history of analysis jobs that reached a
// terminal state, so results and failure reasons survive daemon restarts
// even though live polling state does not.
package archive
