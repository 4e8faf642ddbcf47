// Package ir defines the language-neutral tree every adapter lowers into and
// every emitter lowers out of.
//
// A program is a tree of *Node values rooted at a KindProgram node (or a
// KindModule node for a single adapted fragment). Every node is owned by
// exactly one parent; CheckOwnership enforces this and passes that need a
// second copy of a subtree must Clone it.
//
// Canonical JSON (MarshalCanonical) and Fingerprint give a stable content
// identity for a tree. Positions are excluded so that re-parsing emitted
// code yields the same fingerprint.
//
// ir imports only internal/source; every other internal package may import ir.
package ir
