// Package parser extracts the structural outline of a document:
// sections built from the heading hierarchy, typed content elements
// with exact byte spans, and document-level metadata. The outline is
// the input to strategy selection and structural chunking.
package parser
