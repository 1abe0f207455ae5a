package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "DAPLINKFW"

// app holds the state shared by the subcommands.
type app struct {
	v  *viper.Viper
	fs afero.Fs
}

func newRootCmd() *cobra.Command {
	return newApp(afero.NewOsFs()).rootCmd()
}

// newApp returns an app whose files, config included, live on fs.
func newApp(fs afero.Fs) *app {
	v := viper.New()
	v.SetFs(fs)
	return &app{v: v, fs: fs}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "daplinkfw",
		Short:         "Build and validate DAPLink firmware images",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.configure(cmd)
		},
	}
	root.PersistentFlags().String("config", "", "config file (default ./daplinkfw.yaml)")
	root.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")

	root.AddCommand(
		a.buildCmd(),
		a.algoCmd(),
		a.validateCmd(),
	)
	return root
}

// configure binds flags, environment and config file into viper and sets
// up logging. Command flags are bound under "<command>.<flag>", so
// DAPLINKFW_BUILD_BOARD_ID overrides --board-id of build.
func (a *app) configure(cmd *cobra.Command) error {
	v := a.v
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
		return err
	}
	var bindErr error
	cmd.LocalNonPersistentFlags().VisitAll(func(f *pflag.Flag) {
		if err := v.BindPFlag(cmd.Name()+"."+f.Name, f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	if bindErr != nil {
		return bindErr
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("daplinkfw")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("read config: %w", err)
			}
		}
	}

	level, err := log.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetOutput(cmd.ErrOrStderr())
	if f := v.ConfigFileUsed(); f != "" {
		log.Debugf("using config file %s", f)
	}
	return nil
}

// key returns the viper key of a command flag.
func key(cmd *cobra.Command, flag string) string {
	return cmd.Name() + "." + flag
}

// parseHex parses a hex number with or without a 0x prefix.
func parseHex(s string, bitSize int) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, bitSize)
	if err != nil {
		return 0, fmt.Errorf("invalid hex value %q", s)
	}
	return v, nil
}

func printf(w io.Writer, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(w, format, args...)
}
