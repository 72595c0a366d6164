package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/serlink/internal/session"
)

const helpDescription = `
Connect to a serial line at 115200 8N1 and relay bytes both ways.

Highlights:
  - Ctrl-O ends the session cleanly and restores your terminal mode.
  - Everything the device sends is recorded to a timestamped logfile,
    compressed on clean exit (xz by default).
  - Optional local echo and CR/NL translation for devices that expect
    full CRLF line endings.
  - Configure via ~/.serlink/config.toml, SERLINK_* environment
    variables, or flags; flags win.
`

var exampleUsage = strings.TrimSpace(`
  serlink /dev/ttyUSB0
  serlink --echo --translate /dev/ttyACM0
  serlink --wait --wait-timeout 2m /dev/ttyUSB0
  serlink --no-log /dev/ttyS0
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := session.DefaultConfig()
	var cfgPath string
	var verbose bool

	log := session.Logger()

	root := &cobra.Command{
		Use:     "serlink [flags] <device>",
		Short:   "Interactive serial-port terminal with session logging",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Args:    cobra.ExactArgs(1),
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}

			cfg.Device = args[0]

			// Load config file first (default ~/.serlink/config.toml), then
			// env, then flag overrides via the changed map.
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = session.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && session.FileExists(cfgFile) {
				fc, err := session.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := session.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// Environment variables (SERLINK_*) override file config but
			// are overridden by flags.
			if err := session.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			// The device argument always wins over a config-file device.
			cfg.Device = args[0]

			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(),
				syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return session.New(cfg).Run(ctx)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.serlink/config.toml)")
	root.Flags().BoolVar(&cfg.Echo, "echo", cfg.Echo, "echo typed bytes locally")
	root.Flags().BoolVar(&cfg.Translate, "translate", cfg.Translate, "translate CR/NL line endings between keyboard and device")
	root.Flags().BoolVar(&cfg.Wait, "wait", cfg.Wait, "wait for the device node to appear before opening")
	root.Flags().DurationVar(&cfg.WaitTimeout, "wait-timeout", cfg.WaitTimeout, "how long --wait blocks before giving up")
	root.Flags().StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "directory for session logfiles")
	root.Flags().BoolVar(&cfg.NoLog, "no-log", cfg.NoLog, "disable session recording")
	root.Flags().StringVar(&cfg.Compressor, "compressor", cfg.Compressor, "external tool run on the finished logfile")
	root.Flags().DurationVar(&cfg.DrainTimeout, "drain-timeout", cfg.DrainTimeout, "shutdown drain timeout")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("serlink")
		os.Exit(1)
	}
}
