package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-daplink/channel"
	"github.com/moffa90/go-daplink/protocol"
	"github.com/moffa90/go-daplink/report"
	"github.com/moffa90/go-daplink/validator"
)

// Suites accepted by --suite.
const (
	suiteAssert         = "assert"
	suiteDAPLink        = "daplink"
	suiteLoadInterface  = "load-interface"
	suiteLoadBootloader = "load-bootloader"
)

func (a *app) validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run update scenarios against DAPLink boards",
		Long: `Validate drives one or more DAPLink boards through their mass storage
drive and reports how each update scenario was handled. Boards are given
as UNIQUE_ID=MOUNT_POINT and are tested concurrently.

Either --suite or --plan selects the work:

  assert           trigger and clear a firmware assert
  daplink          assert test plus every bootloader and interface update
  load-interface   install --interface-hex (or -bin) through the bootloader
  load-bootloader  install --bootloader-hex (or -bin) through the interface

A plan is a YAML list of scenarios run in order on every board.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runValidate(cmd)
		},
	}
	f := cmd.Flags()
	f.StringArray("board", nil, "board to test as UNIQUE_ID=MOUNT_POINT (repeatable)")
	f.String("suite", "", "suite to run: assert, daplink, load-interface or load-bootloader")
	f.String("plan", "", "YAML scenario plan to run")
	f.String("interface-hex", "", "interface firmware hex file")
	f.String("interface-bin", "", "interface firmware bin file")
	f.String("bootloader-hex", "", "bootloader firmware hex file")
	f.String("bootloader-bin", "", "bootloader firmware bin file")
	f.Int("attempts", 5, "attempts per scenario when the drive disappears mid transfer")
	f.Duration("retry-delay", 30*time.Second, "delay between attempts")
	f.Duration("settle-delay", 2*time.Second, "delay after a mode change before copying")
	f.Duration("remount-timeout", 600*time.Second, "bound on each of the dismount and mount waits")
	f.Bool("check-fs", false, "check the drive filesystem after every remount")
	f.String("report-level", "info", "lowest message level printed in the report: info, warning or failure")
	return cmd
}

func (a *app) runValidate(cmd *cobra.Command) error {
	v := a.v
	level, err := parseLevel(v.GetString(key(cmd, "report-level")))
	if err != nil {
		return err
	}
	job, err := a.validateJob(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	boards := v.GetStringSlice(key(cmd, "board"))
	if len(boards) == 0 {
		return fmt.Errorf("at least one --board is required")
	}
	validators := make([]*validator.Validator, 0, len(boards))
	for _, b := range boards {
		val, err := a.newValidator(ctx, cmd, b)
		if err != nil {
			return err
		}
		validators = append(validators, val)
	}

	root := report.New("daplinkfw", nil)
	runErr := validator.RunBoards(ctx, root, validators, job)
	if err := root.Print(cmd.OutOrStdout(), level, -1); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	return root.Err()
}

// validateJob returns the per board work selected by --suite or --plan.
func (a *app) validateJob(cmd *cobra.Command) (validator.Job, error) {
	v := a.v
	suite := v.GetString(key(cmd, "suite"))
	planPath := v.GetString(key(cmd, "plan"))
	switch {
	case suite != "" && planPath != "":
		return nil, fmt.Errorf("--suite and --plan are mutually exclusive")
	case planPath != "":
		plan, err := validator.LoadPlanFile(a.fs, planPath)
		if err != nil {
			return nil, err
		}
		scenarios, err := plan.Build(a.fs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", planPath, err)
		}
		return validator.Scenarios(scenarios...), nil
	}

	iface := validator.Firmware{
		HexPath: v.GetString(key(cmd, "interface-hex")),
		BinPath: v.GetString(key(cmd, "interface-bin")),
	}
	bootloader := validator.Firmware{
		HexPath: v.GetString(key(cmd, "bootloader-hex")),
		BinPath: v.GetString(key(cmd, "bootloader-bin")),
	}

	switch suite {
	case suiteAssert:
		return func(ctx context.Context, val *validator.Validator, t *report.Test) error {
			return val.AssertTest(ctx, t)
		}, nil
	case suiteDAPLink:
		for name, path := range map[string]string{
			"--interface-hex":  iface.HexPath,
			"--interface-bin":  iface.BinPath,
			"--bootloader-hex": bootloader.HexPath,
			"--bootloader-bin": bootloader.BinPath,
		} {
			if path == "" {
				return nil, fmt.Errorf("%s is required by the %s suite", name, suite)
			}
		}
		return func(ctx context.Context, val *validator.Validator, t *report.Test) error {
			return val.DAPLinkSuite(ctx, t, iface, bootloader)
		}, nil
	case suiteLoadInterface:
		return loadJob(iface, protocol.ModeInterface)
	case suiteLoadBootloader:
		return loadJob(bootloader, protocol.ModeBootloader)
	case "":
		return nil, fmt.Errorf("one of --suite or --plan is required")
	default:
		return nil, fmt.Errorf("unknown suite %q", suite)
	}
}

func loadJob(fw validator.Firmware, kind protocol.Mode) (validator.Job, error) {
	path := fw.HexPath
	if path == "" {
		path = fw.BinPath
	}
	if path == "" {
		return nil, fmt.Errorf("--%s-hex or --%s-bin is required", kind, kind)
	}
	return func(ctx context.Context, val *validator.Validator, t *report.Test) error {
		return val.LoadFirmware(ctx, t, path, kind)
	}, nil
}

// newValidator opens the board given as UNIQUE_ID=MOUNT_POINT.
func (a *app) newValidator(ctx context.Context, cmd *cobra.Command, board string) (*validator.Validator, error) {
	v := a.v
	uid, mount, ok := strings.Cut(board, "=")
	if !ok || uid == "" || mount == "" {
		return nil, fmt.Errorf("invalid board %q, want UNIQUE_ID=MOUNT_POINT", board)
	}

	entry := log.WithField("board", uid)
	logger := validator.NewLogrusLogger(entry)
	disc := channel.NewMountDiscovery(a.fs, uid, mount)
	ch, err := channel.New(ctx, a.fs, disc, uid,
		channel.WithLogger(logger),
		channel.WithRemountTimeout(v.GetDuration(key(cmd, "remount-timeout"))),
		channel.WithCheckFSOnRemount(v.GetBool(key(cmd, "check-fs"))),
	)
	if err != nil {
		return nil, fmt.Errorf("board %s: %w", uid, err)
	}

	return validator.New(ch,
		validator.WithLogger(logger),
		validator.WithReportLogger(entry),
		validator.WithHostFs(a.fs),
		validator.WithRetries(v.GetInt(key(cmd, "attempts")), v.GetDuration(key(cmd, "retry-delay"))),
		validator.WithSettleDelay(v.GetDuration(key(cmd, "settle-delay"))),
		validator.WithProgressCallback(func(p validator.Progress) {
			entry.WithFields(log.Fields{
				"scenario": p.Scenario,
				"attempt":  p.Attempt,
				"phase":    p.Phase,
				"percent":  fmt.Sprintf("%.1f", p.Percentage),
			}).Debug("progress")
		}),
	), nil
}

func parseLevel(s string) (report.Level, error) {
	switch strings.ToLower(s) {
	case "info":
		return report.LevelInfo, nil
	case "warning", "warn":
		return report.LevelWarning, nil
	case "failure", "fail":
		return report.LevelFailure, nil
	default:
		return 0, fmt.Errorf("unknown report level %q", s)
	}
}
