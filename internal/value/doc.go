// Package value implements the property value model for resource
// input and output bags.
//
// Values form a sealed interface: Null, Bool, Number, String, Array,
// Object, plus two coordinator-specific variants:
//
//   - Unknown: a distinguished placeholder for a property whose value
//     has not been computed yet. Distinct from Null and from absence.
//   - ResourceRef: an explicit tagged reference to another resource's
//     output property. The dependency graph is reconstructed from these
//     references; no sentinel-string conventions are used.
//
// Both variants serialize as JSON objects carrying the reserved
// "$capstan" tag key so they survive round-trips through the store and
// the wire boundary without ambiguity.
//
// The package also provides canonical JSON serialization (sorted keys,
// NFC-normalized strings, no HTML escaping) and domain-separated
// SHA-256 hashing. Registration requests are hashed canonically; an
// identical hash marks an idempotent retry of the same logical request.
package value
