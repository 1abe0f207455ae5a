package protocol

// Files published by the device.
const (
	// FileDetails holds the device metadata
	FileDetails = "DETAILS.TXT"

	// FileFail holds the failure message of the last update
	FileFail = "FAIL.TXT"

	// FileAssert holds the last assertion location
	FileAssert = "ASSERT.TXT"

	// FileNeedBL is present while the bootloader image is invalid
	FileNeedBL = "NEED_BL.TXT"
)

// Control markers. Creating one triggers the action; content is ignored.
const (
	MarkerRefresh = "REFRESH.ACT"
	MarkerStartBL = "START_BL.ACT"
	MarkerStartIF = "START_IF.ACT"
	MarkerAssert  = "ASSERT.ACT"
)

// Metadata keys after normalization.
const (
	KeyUniqueID          = "unique_id"
	KeyHICID             = "hic_id"
	KeyMode              = "daplink_mode"
	KeyBootloaderVersion = "bootloader_version"
	KeyInterfaceVersion  = "interface_version"
	KeyGitSHA            = "git_sha"
	KeyLocalMods         = "local_mods"
	KeyUSBInterfaces     = "usb_interfaces"
	KeyBootloaderCRC     = "bootloader_crc"
	KeyInterfaceCRC      = "interface_crc"
	KeyRemountCount      = "remount_count"

	// ASSERT.TXT keys
	KeyAssertFile = "file"
	KeyAssertLine = "line"
)

// Failure categories reported in FAIL.TXT.
const (
	CategoryUser          = "user"
	CategoryInterface     = "interface"
	CategoryTransientUser = "transient, user"
)

// Failure messages reported by the firmware.
const (
	MsgIncomplete        = "In application programming failed because the update sent was incomplete."
	MsgBootloaderAddress = "The starting address for the bootloader update is wrong."
	MsgInterfaceAddress  = "The starting address for the interface update is wrong."
	MsgBootloaderCRC     = "The bootloader CRC did not pass."
	MsgTransferTimeout   = "The transfer timed out."
	MsgSecurityBits      = "The interface firmware ABORTED programming. Image is trying to set security bits"
)

// Unique ID layout: 4 hex digit board id, 4 hex digit version, 32 hex
// digit host id, 8 hex digit HIC id.
const (
	UniqueIDLength = 48
	hostIDStart    = 8
	hostIDLength   = 32
	hicIDLength    = 8
)
