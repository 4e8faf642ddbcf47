// Package source holds the inputs of a fusion job: language tags, source
// units and source positions.
//
// A Unit is immutable once ingested. Every later stage reads its text and
// metadata through accessors and never writes back.
package source
