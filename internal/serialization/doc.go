// Package serialization implements the .darts checkpoint format.
//
// A checkpoint file is laid out as:
//
//	offset  size  field
//	0x00    4     magic "DNAS"
//	0x04    4     format version (uint32, little-endian)
//	0x08    4     flags (uint32)
//	0x0C    8     JSON header length (uint64)
//	0x14    n     JSON header
//	...           zero padding to a 64-byte boundary
//	...           tensor payload
//
// The JSON header lists every tensor with its dtype, shape and byte range in
// the payload, plus free-form metadata, the network configuration that
// produced the tensors and optional search progress. The hex SHA-256 of the
// payload is stored in the header and verified on read.
//
// Tensor data is little-endian regardless of the host byte order.
package serialization
