// Package grammar defines the context-free grammar that bounds the space of
// SQL programs the synthesizer can enumerate.
//
// A Grammar is a flat mapping from nonterminal Symbol to an ordered list of
// Productions. Recursion lives only in the trees built from it, never in the
// grammar's own data structure. Grammars are validated once, by Build, and
// are immutable and safe for concurrent use afterwards.
//
// Each Production carries:
//   - a non-negative integer Weight, summed into a tree's complexity
//   - a Kind, from a closed set the constraint model switches over
//   - a Template used by the renderer ("{0}" names the first child)
//   - typing rules: per-child argument types and a result type
//
// SQL builds the default grammar for an example database.
package grammar
