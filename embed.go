package wordgame

import _ "embed"

// DefaultWords is the word bank shipped with the server, used when no words
// file is configured
//
//go:embed words.yaml
var DefaultWords []byte
