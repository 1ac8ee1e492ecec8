// Package ir defines the intermediate representation produced by API
// extractors: one MinimalIR per released version, holding one SymbolRecord per
// public symbol.
//
// IR arrives as loosely shaped JSON from external extractors. Decode validates
// it at the boundary: structural contract violations (missing symbols array,
// duplicate qualified names) are errors, while individually malformed symbols
// are dropped and reported as warnings.
package ir
