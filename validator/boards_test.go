package validator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-daplink/internal/simdevice"
	"github.com/moffa90/go-daplink/report"
	"github.com/moffa90/go-daplink/validator"
)

func TestRunBoards(t *testing.T) {
	app := simdevice.Firmware(0, 0x1000)
	a := newFixture(t, []simdevice.Option{simdevice.WithBoardID(0x0240)})
	b := newFixture(t, []simdevice.Option{simdevice.WithBoardID(0x9900)})

	parent := report.New("boards", nil)
	job := validator.Scenarios(
		validator.Scenario{Name: "Normal Load", Source: app, FileName: "image.bin", Expect: validator.Success{Data: app}},
		validator.Scenario{Name: "Load partial", Source: app[:4], FileName: "image.bin",
			Expect: validator.Failure{Message: "The transfer timed out.", Category: "transient, user"}},
	)
	err := validator.RunBoards(context.Background(), parent, []*validator.Validator{a.v, b.v}, job)
	require.NoError(t, err)
	require.NoError(t, parent.Err())

	for _, f := range []*fixture{a, b} {
		got, err := f.dev.ReadTargetMemory(context.Background(), 0, len(app))
		require.NoError(t, err)
		require.Equal(t, app, got)
	}
}

func TestRunBoardsError(t *testing.T) {
	a := newFixture(t, nil)
	boom := errors.New("boom")

	err := validator.RunBoards(context.Background(), report.New("boards", nil), []*validator.Validator{a.v},
		func(ctx context.Context, v *validator.Validator, t *report.Test) error {
			return boom
		})
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, a.ch.UniqueID())
}
