/*
Package entry implements the Entry: Eidetica's immutable, signed,
content-addressed DAG node (spec §3, §4.1).

An Entry never mutates after Build returns it. Its ID is the sha256 hash
of its canonical JSON form with Sig.Sig excluded — signing an Entry
never changes its identity, only whether it verifies. Height is stored
on the Entry rather than recomputed on every traversal, which is what
lets Backend topologically sort a tree in O(n log n).
*/
package entry
