// Package cache implements the permutation-keyed compilation cache: a
// trie over join-order permutations that deduplicates recompiling the
// same table ordering across queries (spec §4.6).
package cache
