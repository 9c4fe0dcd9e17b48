//go:build linux

// Command wgobfsd runs the WireGuard NFQUEUE obfuscator: one worker per
// configured queue, each binding an NFQUEUE and obfuscating or
// deobfuscating the datagrams the kernel hands it.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sh0rch/wgobfs"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "wgobfsd",
	Short:         "NFQUEUE-based WireGuard traffic obfuscator",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	// With no subcommand, run every configured queue — the original's
	// no-argument default, per SPEC_FULL.md §6.
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to the rule file (default: $WGOBFS_CONFIG or /etc/wgobfs/config)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindEnv("config", "WGOBFS_CONFIG")

	rootCmd.AddCommand(startCmd, runCmd, unitsCmd, versionCmd, checkCipherCmd)
}

// configPath resolves the effective rule file path: --config flag, then
// WGOBFS_CONFIG, then the compiled-in default, in that order of precedence.
func configPath() string {
	if p := viper.GetString("config"); p != "" {
		return p
	}
	return wgobfs.ConfigPath()
}

func requireRoot() error {
	if os.Geteuid() != 0 {
		return wgobfs.ErrNotRoot{}
	}
	return nil
}

var startCmd = &cobra.Command{
	Use:   "start <queue>",
	Short: "Run the worker for a single queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoot(); err != nil {
			return err
		}

		queue64, err := strconv.ParseUint(args[0], 10, 16)
		if err != nil {
			return fmt.Errorf("invalid queue number %q: %w", args[0], err)
		}
		queue := uint16(queue64)

		rules, err := wgobfs.LoadRulesWithProfiles(configPath())
		if err != nil {
			return err
		}

		var rule *wgobfs.Rule
		for _, r := range rules {
			if r.Queue == queue {
				rule = r
				break
			}
		}
		if rule == nil {
			return wgobfs.ErrUnknownQueue{Queue: queue}
		}

		ctx, stop := signalContext()
		defer stop()

		w := wgobfs.NewWorker(rule, wgobfs.LinuxQueueOpener)
		return w.Run(ctx)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run workers for every configured queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoot(); err != nil {
			return err
		}

		rules, err := wgobfs.LoadRulesWithProfiles(configPath())
		if err != nil {
			return err
		}
		if len(rules) == 0 {
			return fmt.Errorf("no rules configured in %s", configPath())
		}

		ctx, stop := signalContext()
		defer stop()

		var wg sync.WaitGroup
		for _, rule := range rules {
			rule := rule
			w := wgobfs.NewWorker(rule, wgobfs.LinuxQueueOpener)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := w.Run(ctx); err != nil && ctx.Err() == nil {
					log.Printf("[wgobfs] queue %d (%s) exited: %s", rule.Queue, rule.Name, err)
				}
			}()
		}
		wg.Wait()
		return nil
	},
}

var (
	unitsOutDir  string
	unitsExecBin string
)

var unitsCmd = &cobra.Command{
	Use:   "units",
	Short: "Generate systemd unit files for the configured queues",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := wgobfs.LoadRules(configPath())
		if err != nil {
			return err
		}
		written, err := wgobfs.GenerateSystemdUnits(rules, unitsOutDir, unitsExecBin)
		if err != nil {
			return err
		}
		for _, f := range written {
			fmt.Printf("generated %s\n", f)
		}
		return nil
	},
}

func init() {
	unitsCmd.Flags().StringVar(&unitsOutDir, "out", "", "output directory (default: "+wgobfs.UnitsOutDir+")")
	unitsCmd.Flags().StringVar(&unitsExecBin, "exec", "", "path the generated units invoke (default: /usr/bin/wgobfsd)")
}

var checkCipherCmd = &cobra.Command{
	Use:   "check-cipher",
	Short: "Report which cipher variant this host will use",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if wgobfs.HasFastCipher() {
			fmt.Println("fast (full-round, hardware-accelerated)")
		} else {
			fmt.Println("fallback (reduced-round, software)")
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wgobfsd %s\n", version)
	},
}

// signalContext returns a context canceled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
