// Package bundle assembles a session's recordings into one zip archive.
//
// Layout, under a configurable root folder (default "recordings/"):
//
//	recordings/metadata.json
//	recordings/words/words_all.<ext>, words_all.txt
//	recordings/sentences/sentence_NN.<ext>, sentence_NN.txt
//	recordings/paragraph/paragraph.<ext>, paragraph.txt
//
// Assembly either yields a complete archive or an *AssemblyError; partial
// output is never returned.
package bundle
