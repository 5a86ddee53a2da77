package main

import (
	"fmt"

	"github.com/eideticadb/eidetica/pkg/instance"
	"github.com/eideticadb/eidetica/pkg/sync/engine"
	"github.com/eideticadb/eidetica/pkg/types"
	"github.com/spf13/cobra"
)

// bootstrapCmd administers pending bootstrap requests against an
// instance's data directory directly, without running the instance's
// sync engine loop: ApproveBootstrap/RejectBootstrap/Bootstrap().Pending
// all act synchronously on the backend, so a short-lived Engine built
// here (never Start()ed) is enough to decide a request while eideticad
// start is not running against the same data directory.
var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "List and decide pending join requests",
}

var bootstrapListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending bootstrap requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, eng, err := openAdminEngine(cmd)
		if err != nil {
			return err
		}
		pending, err := eng.Bootstrap().Pending()
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Println("no pending bootstrap requests")
			return nil
		}
		for id, req := range pending {
			fmt.Printf("%s  tree=%s  requester=%s  status=%s\n", id, req.TreeID, req.RequestingPubKey, req.Status)
		}
		return nil
	},
}

var bootstrapApproveCmd = &cobra.Command{
	Use:   "approve <tree-id> <request-id>",
	Short: "Approve a pending bootstrap request",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, eng, err := openAdminEngine(cmd)
		if err != nil {
			return err
		}
		if err := eng.ApproveBootstrap(types.ID(args[0]), args[1]); err != nil {
			return err
		}
		fmt.Println("approved")
		return nil
	},
}

var bootstrapRejectCmd = &cobra.Command{
	Use:   "reject <tree-id> <request-id>",
	Short: "Reject a pending bootstrap request",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, eng, err := openAdminEngine(cmd)
		if err != nil {
			return err
		}
		if err := eng.RejectBootstrap(types.ID(args[0]), args[1]); err != nil {
			return err
		}
		fmt.Println("rejected")
		return nil
	},
}

func init() {
	bootstrapCmd.AddCommand(bootstrapListCmd, bootstrapApproveCmd, bootstrapRejectCmd)
}

func openAdminEngine(cmd *cobra.Command) (*instance.Instance, *engine.Engine, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	b, err := cfg.OpenBackend()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open backend: %w", err)
	}
	device, err := cfg.LoadOrCreateDeviceKey()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load device key: %w", err)
	}
	inst, err := instance.Open(b, device)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open instance: %w", err)
	}
	sys, err := openSystemDatabase(inst)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open system database: %w", err)
	}
	eng := engine.New(inst, sys, device, engine.Config{})
	return inst, eng, nil
}
