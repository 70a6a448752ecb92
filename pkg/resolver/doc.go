// Package resolver maps free-text candidate entity names onto concrete
// graph nodes.
//
// Resolution favors precision over recall: a cascade of strategies runs in
// order (exact, alias, attribute key, substring, token overlap, embedding),
// each only for candidates earlier strategies left unresolved, and the
// first acceptable match wins. A candidate that resolves to nothing is
// dropped and counted, never an error.
package resolver
