// Package provenance ties fingerprinting, watermarking, and the provenance
// store together.
//
// Stamp derives a fingerprint for a prompt, embeds it in an image, and
// records the (fingerprint, prompt) pair. Verify reads the candidate
// fingerprint back out of an image and looks it up. The stego and store
// packages never call each other; all orchestration happens here.
//
// # Store calls
//
// Every store call runs under a per-attempt timeout. Transient failures
// (lock contention, attempt timeouts) are retried with exponential backoff.
// Anything else fails immediately. Once the retry budget is spent the call
// returns a *StorageError.
//
// # Ordering
//
// Stamp records the pair before it returns the watermarked image. A caller
// that receives a StampResult can rely on the fingerprint being in the store.
package provenance
