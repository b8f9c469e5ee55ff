// Package urn implements stable logical identity for declared resources.
//
// A URN names one resource within a deployment session. It is composed
// deterministically from the session's stack and project, the resource's
// type chain (the types of its parents joined with "$"), and its logical
// name:
//
//	urn:capstan:<stack>::<project>::<qualified-type>::<name>
//
// Example:
//
//	urn:capstan:prod::webapp::aws:s3:Bucket::assets
//	urn:capstan:prod::webapp::custom:Group$aws:s3:Bucket::assets
//
// URNs are unique within a session and immutable once assigned. The
// Allocator reserves them at registration time and rejects duplicates
// unless the caller presents the same request hash (an idempotent retry
// of the same logical registration).
//
// Logical names are NFC-normalized before composition so that visually
// identical names cannot produce distinct URNs.
package urn
