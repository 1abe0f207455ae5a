// Package channel drives the update channel a DAPLink device exposes on its
// virtual drive.
//
// # Overview
//
// A DAPLink device is always in one of two modes, interface or bootloader,
// and publishes its state as text files on the drive:
//
//	DETAILS.TXT - device metadata (mode, ids, CRCs, remount count)
//	FAIL.TXT    - failure of the last update, if any
//	ASSERT.TXT  - location of the last firmware assertion, if any
//	NEED_BL.TXT - present while the bootloader is invalid
//
// Actions are requested by creating empty marker files (START_BL.ACT,
// START_IF.ACT, REFRESH.ACT, ASSERT.ACT). Each action, and every accepted
// update, makes the drive dismount and mount again.
//
// # Basic Usage
//
//	fs := afero.NewOsFs()
//	ch, err := channel.New(ctx, fs, channel.NewMountDiscovery(fs, uid, "/media/DAPLINK"), uid)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Switch to the bootloader and wait for the drive to come back
//	if err := ch.SetMode(ctx, protocol.ModeBootloader, nil); err != nil {
//	    log.Fatal(err)
//	}
//
// # Remount Handling
//
// WaitForRemount first waits for the drive to disappear, unless the device
// is seen to have already remounted (its mode or remount count changed),
// then waits for it to reappear at the same mount point on two consecutive
// lookups. Both waits are bounded by the remount timeout (600 s by default)
// and polled every 100 ms.
//
// # Discovery
//
// Finding the mount point of a device is delegated to a Discovery. The
// device is matched by host id, which does not change between modes while
// the rest of the unique id may.
package channel
