// Package match holds the pure string functions the resolver is built on:
// name normalization and bounded similarity scoring.
//
// Two player names are only ever compared in normalized form. Normalize strips
// diacritics, folds case, treats hyphens as separators and drops punctuation,
// so "Karim Traoré", "KARIM TRAORE" and "Karim  Traore" all become the token
// sequence [karim traore].
//
// Score combines two signals, token-set Jaccard and normalized Levenshtein
// similarity, and returns the larger by default. Jaccard tolerates reordered
// tokens ("Pablo Rosario" / "Rosario Pablo"); the edit signal tolerates close
// misspellings that share few tokens ("Kylian Mbappe" / "Kilian Mbape").
//
// Everything here is deterministic and safe for concurrent use.
package match
