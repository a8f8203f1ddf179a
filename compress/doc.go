// Package compress implements the row/block decompression schemes used by
// the three supported statistical file formats.
//
// Every format compresses differently, but all four schemes here share one
// contract: given a declared output length, produce exactly that many
// bytes, truncating an over-long stream and NUL-padding a short one.
//
//   - RLEDecompressor implements SAS's "SASYZCRL" byte-run scheme.
//   - RDCDecompressor implements SAS's "SASYZCR2" Ross Data Compression
//     scheme (control-word literal/command dispatch with overlapping
//     pattern copies).
//   - SAVByteRunDecoder implements SPSS's SAV compression: 8-byte control
//     chunks whose control bytes don't align with record boundaries, so
//     it is a resumable decoder rather than a pure function.
//   - ZSAVDecoder layers SAV byte-run decoding on top of zlib-inflated
//     blocks for SPSS's ZSAV variant, carrying byte-run state across
//     block boundaries.
//
// SAS decompressors are stateless and share the Decompressor interface;
// SPSS's SAV and ZSAV decoders carry state across calls and are exposed
// as their own types rather than forced into that interface.
package compress
