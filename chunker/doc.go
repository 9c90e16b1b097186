// Package chunker splits documents into retrieval-sized chunks. Five
// strategies share one pipeline: each strategy emits an ordered,
// contiguous cut list over the source bytes, and a common builder turns
// the cuts into chunks with overlap leads, section context, and
// neighbor links. Because cuts are contiguous by construction, joining
// the chunk bodies always reproduces the source document byte for
// byte.
package chunker
