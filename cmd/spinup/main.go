package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"spinup/internal/config"
	"spinup/internal/libvirt"
	"spinup/internal/lifecycle"
	"spinup/internal/logging"
	"spinup/internal/spec"
	"spinup/internal/sshkey"
	"spinup/internal/state"
	"spinup/internal/storage"
	"spinup/internal/vm"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := logging.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to set up logging: %v\n", err)
		os.Exit(2)
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		logging.Sync()
		os.Exit(exitCode(err))
	}
}

// exitCode maps error kinds to the documented exit codes: 1 for spec
// parse errors, 3 for name resolution errors, 2 for everything else.
func exitCode(err error) int {
	var perr *spec.ParseError
	if errors.As(err, &perr) {
		return 1
	}
	var rerr *lifecycle.ResolutionError
	if errors.As(err, &rerr) {
		return 3
	}
	return 2
}

var rootCmd = &cobra.Command{
	Use:   "spinup [token]...",
	Short: "Spinup - ephemeral VMs for the current directory",
	Long: `Spinup creates throwaway VMs on the local libvirt hypervisor, one
cluster per working directory.

Invoked without a verb it brings the cluster up. Each group of tokens
describes one machine: memory like 2G, CPUs like 4cpus, disk like
disk=20G, an image variant keyword, dhcp or A.B.C.D/N interfaces.
Groups are separated by -- or started with :name.

  spinup                          one machine with defaults
  spinup 4G 2cpus                 one machine, 4 GiB memory, 2 CPUs
  spinup :web 2G -- :db disk=40G  two named machines`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	RunE:          runUp,
}

func init() {
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(sshCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func runUp(cmd *cobra.Command, args []string) error {
	cluster, err := spec.Parse(specTokens(cmd, args))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	rt, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := rt.ctrl.Up(ctx, cluster)
	printReport(report)
	return err
}

// specTokens restores the group separator cobra strips: the first
// "--" is consumed by flag parsing, but it is part of the machine
// grammar.
func specTokens(cmd *cobra.Command, args []string) []string {
	dash := cmd.ArgsLenAtDash()
	if dash < 0 {
		return args
	}
	tokens := make([]string, 0, len(args)+1)
	tokens = append(tokens, args[:dash]...)
	tokens = append(tokens, "--")
	tokens = append(tokens, args[dash:]...)
	return tokens
}

// printReport prints one line per machine outcome.
func printReport(report *lifecycle.Report) {
	if report == nil {
		return
	}
	for _, o := range report.Outcomes {
		if o.Err != nil {
			fmt.Printf("✗ %s: %s (%v)\n", o.Machine, o.Action, o.Err)
			continue
		}
		fmt.Printf("✓ %s: %s\n", o.Machine, o.Action)
	}
}

// runtime bundles the wired subsystems one invocation needs.
type runtime struct {
	cfg  *config.Config
	ctrl *lifecycle.Controller
	keys *sshkey.Keypair
}

// setup loads configuration, resolves the directory's cluster
// identity and connects everything up to a lifecycle controller. The
// returned cleanup closes the hypervisor connection.
func setup(ctx context.Context) (*runtime, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	ident, err := state.ResolveIdentity(wd)
	if err != nil {
		return nil, nil, err
	}

	store, err := state.NewStore(cfg.StateDir, cfg.LockTimeout)
	if err != nil {
		return nil, nil, err
	}

	keys, err := sshkey.LoadOrGenerate(cfg.SSHPublicKey, store.Dir())
	if err != nil {
		return nil, nil, err
	}

	client, err := libvirt.ConnectWithContext(ctx, cfg.Socket, cfg.ConnectTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to libvirt: %w", err)
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close libvirt connection: %v\n", err)
		}
	}

	mgr := storage.NewManager(client.Libvirt(), storage.PoolConfig{
		ImagesPool:   cfg.ImagePool,
		ImagesPath:   cfg.ImagePoolPath,
		VMsPool:      cfg.VMPool,
		VMsPath:      cfg.VMPoolPath,
		HostImageDir: cfg.ImageDir,
	})
	backend := vm.NewBackend(client.Libvirt(), mgr, cfg, ident.ID, []string{keys.PublicKey})
	ctrl := lifecycle.NewController(backend, store, ident, cfg)

	return &runtime{cfg: cfg, ctrl: ctrl, keys: keys}, cleanup, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("spinup %s (commit: %s)\n", version, commit)
	},
}
