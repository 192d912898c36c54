package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"spinup/internal/sshkey"
)

var sshCmd = &cobra.Command{
	Use:   "ssh [machine-name]",
	Short: "Open a shell on a machine",
	Long: `Open an interactive SSH session on the named machine. With a
single-machine cluster the name can be omitted.

Static machines are reached at their configured address; DHCP machines
are looked up in the hypervisor's lease table, waiting for the guest
to obtain an address if it just booted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}

		ctx := cmd.Context()
		rt, cleanup, err := setup(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		machine, err := rt.ctrl.Resolve(name)
		if err != nil {
			return err
		}

		addrCtx, cancel := context.WithTimeout(ctx, rt.cfg.OpTimeout)
		defer cancel()
		addr, err := rt.ctrl.Address(addrCtx, machine)
		if err != nil {
			return err
		}

		rec, err := rt.ctrl.Machine(machine)
		if err != nil {
			return err
		}

		fmt.Printf("Connecting to %s (%s)...\n", machine, addr)
		return sshkey.Shell(ctx, sshkey.ShellConfig{
			Addr:           addr,
			Port:           rt.cfg.SSHPort,
			User:           rt.cfg.SSHUserFor(rec.Variant),
			PrivateKeyPath: rt.keys.PrivateKeyPath,
			ConnectTimeout: rt.cfg.OpTimeout,
		})
	},
}
