// Package transform applies an integration's declarative mapping to a
// single source record.
//
// A record is first projected by copying SourceFields[i] to
// TargetFields[i], then each Transformation derives its TargetField from
// the original record:
//
//   - map: a JSON lookup table keyed by the value's string form
//   - format: a template, timestamp canonicalisation or decimal precision
//   - calculate: an arithmetic formula over the record's numeric fields
//   - filter: a JSON condition deciding whether the record is kept
//
// The engine is a pure function per record. It reports failures as
// *domain.TransformError and never recovers them; callers decide whether
// to drop the record.
package transform
