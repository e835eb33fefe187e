// Byte-size constants and zero-copy string/byte conversions, in the idiom
// of the teacher's cmn/cos package (cos.KiB, cos.UnsafeB/UnsafeS).
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import "unsafe"

const (
	KiB = 1024
	MiB = 1024 * KiB
)

// UnsafeB reinterprets a string's bytes without copying. Safe as long as the
// caller never mutates the result, which holds for every call site in this
// module (read-only views into decoded wire buffers).
func UnsafeB(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// UnsafeS reinterprets a []byte as a string without copying.
func UnsafeS(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}
