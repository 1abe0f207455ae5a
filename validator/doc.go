// Package validator checks how a DAPLink device handles updates over its
// mass-storage drive.
//
// # Overview
//
// A Scenario writes one file to the drive and describes the expected
// outcome:
//   - Switching the device to the scenario mode
//   - Creating mock files before and after the transfer
//   - Writing the file in one go, in flushed chunks, or by copying a host file
//   - Waiting for the device to remount
//   - Matching FAIL.TXT against the expected failure, or verifying the data
//   - Checking the mode the device ends up in
//
// Mismatches are recorded as failures in a report.Test. Errors are returned
// only when a scenario could not be carried out.
//
// # Basic Usage
//
//	disc := channel.NewMountDiscovery(afero.NewOsFs(), uniqueID, "/media/DAPLINK")
//	ch, err := channel.New(ctx, afero.NewOsFs(), disc, uniqueID)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	v := validator.New(ch)
//	t, err := v.Run(ctx, validator.Scenario{
//	    Name:         "Load interface",
//	    Source:       data,
//	    FileName:     "interface.hex",
//	    Mode:         protocol.ModeBootloader,
//	    ExpectedMode: protocol.ModeInterface,
//	    Expect:       validator.Success{Data: img.Data, Check: validator.CheckCRC{}},
//	}, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	t.Print(os.Stdout, report.LevelInfo, -1)
//
// # Retries
//
// The host may lose the drive while it writes, since the device remounts
// as soon as it has seen enough data. Such I/O errors are retried up to
// five times, 30 seconds apart, re-reading the device info in between.
// ErrRetriesExhausted is returned when every attempt failed that way.
//
// # Suites
//
// DAPLinkSuite, FileTypeSuite, MassStorageSuite and AssertTest run the
// standard sequences of scenarios. RunBoards runs a Job on several devices
// concurrently, and LoadPlan reads scenarios from YAML.
//
// # Progress Tracking
//
//	v := validator.New(ch,
//	    validator.WithProgressCallback(func(p validator.Progress) {
//	        fmt.Printf("\r%s %s: %.1f%%", p.Scenario, p.Phase, p.Percentage)
//	    }),
//	)
//
// # Thread Safety
//
// Scenarios on one device are serialized. Validators of different devices
// can be used concurrently.
package validator
