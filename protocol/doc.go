// Package protocol implements the file based control protocol of the
// DAPLink mass storage drive.
//
// # Protocol Overview
//
// A DAPLink device exposes a FAT drive. The host controls the device by
// creating files on it and observes the device by reading the files it
// publishes after every remount:
//
//	DETAILS.TXT   device metadata, "Key: value" per line
//	FAIL.TXT      result of the last failed update, two lines
//	ASSERT.TXT    location of the last firmware assertion
//	NEED_BL.TXT   present while the bootloader is invalid
//
// Control markers are zero byte files whose creation triggers an action:
//
//	REFRESH.ACT   remount without changing mode
//	START_BL.ACT  switch to bootloader mode
//	START_IF.ACT  switch to interface mode
//	ASSERT.ACT    trigger a firmware assertion (test builds)
//
// # Metadata
//
// ParseKVP reads the key/value format shared by DETAILS.TXT and
// ASSERT.TXT. Keys are lower-cased with spaces replaced by underscores,
// values are lower-cased and trimmed:
//
//	Unique ID: 0240000032044e4500257009997b00386781000097969900
//	Daplink Mode: Interface
//
// yields unique_id and daplink_mode=interface. ParseDetails builds a
// Details snapshot and ValidateDetails checks every field format.
//
// # Failure Log
//
// FAIL.TXT has exactly two lines:
//
//	error: The bootloader CRC did not pass.
//	type: interface
//
// ParseFailure returns it as a Failure. Categories are CategoryUser,
// CategoryInterface and CategoryTransientUser.
//
// # Content Checks
//
// CheckContents verifies that a published file is printable ASCII with
// CRLF line endings, no trailing whitespace and a final CRLF.
package protocol
