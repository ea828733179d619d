// Command colonyctl is a thin introspection client for a running
// colony master's control-plane socket, plus a smoke-test mode that
// exercises the in-memory broker without a master at all.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cuemby/colony/pkg/broker"
	"github.com/cuemby/colony/pkg/results"
	"github.com/cuemby/colony/pkg/rpc"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "colonyctl: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "colonyctl",
	Short: "Inspect and control a running colony master",
}

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "List worker slots",
	RunE: func(cmd *cobra.Command, args []string) error {
		sock, _ := cmd.Flags().GetString("socket")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		c, err := rpc.Dial(ctx, sock)
		if err != nil {
			return fmt.Errorf("dial %s: %w", sock, err)
		}
		defer c.Close()

		reply, err := c.ListWorkers(ctx)
		if err != nil {
			return fmt.Errorf("list workers: %w", err)
		}
		fmt.Printf("%-6s %-8s %-8s %s\n", "SLOT", "PID", "RUNNING", "RESTARTS")
		for _, w := range reply.Workers {
			fmt.Printf("%-6d %-8d %-8t %d\n", w.Slot, w.PID, w.Running, w.Restarts)
		}
		return nil
	},
}

var forksCmd = &cobra.Command{
	Use:   "forks",
	Short: "List fork subprocesses",
	RunE: func(cmd *cobra.Command, args []string) error {
		sock, _ := cmd.Flags().GetString("socket")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		c, err := rpc.Dial(ctx, sock)
		if err != nil {
			return fmt.Errorf("dial %s: %w", sock, err)
		}
		defer c.Close()

		reply, err := c.ListForks(ctx)
		if err != nil {
			return fmt.Errorf("list forks: %w", err)
		}
		fmt.Printf("%-30s %s\n", "PATH", "PID")
		for _, f := range reply.Forks {
			fmt.Printf("%-30s %d\n", f.Path, f.PID)
		}
		return nil
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart SLOT",
	Short: "Restart a worker slot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sock, _ := cmd.Flags().GetString("socket")
		var slot int
		if _, err := fmt.Sscanf(args[0], "%d", &slot); err != nil {
			return fmt.Errorf("invalid slot %q", args[0])
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		c, err := rpc.Dial(ctx, sock)
		if err != nil {
			return fmt.Errorf("dial %s: %w", sock, err)
		}
		defer c.Close()

		if err := c.RestartWorker(ctx, slot); err != nil {
			return fmt.Errorf("restart worker %d: %w", slot, err)
		}
		fmt.Printf("restart requested for worker %d\n", slot)
		return nil
	},
}

// smokeCmd drives broker.Memory end to end with no master process at
// all: enqueue one message, fetch it back, store a result for it, and
// read the result back out. It exists to give a quick local signal
// that the broker/results wiring works before standing up a full
// master.
var smokeCmd = &cobra.Command{
	Use:   "smoke",
	Short: "Round-trip a message through the in-memory broker and result backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		b := broker.NewMemory(nil)
		defer b.Close()

		msg := results.Message{
			ID:    uuid.NewString(),
			Queue: "default",
			Actor: "colonyctl.smoke",
		}
		payload := []byte(`{"smoke":true}`)

		if err := b.Enqueue(ctx, "default", msg, payload); err != nil {
			return fmt.Errorf("enqueue: %w", err)
		}
		fmt.Printf("enqueued %s on queue %q\n", msg.ID, msg.Queue)

		gotMsg, gotPayload, err := b.Fetch(ctx, []string{"default"})
		if err != nil {
			return fmt.Errorf("fetch: %w", err)
		}
		fmt.Printf("fetched %s: %s\n", gotMsg.ID, gotPayload)

		backend := results.NewMemory()
		if err := backend.Store(ctx, gotMsg, map[string]any{"ok": true}, time.Minute); err != nil {
			return fmt.Errorf("store result: %w", err)
		}

		val, err := backend.Get(ctx, gotMsg, results.GetOptions{})
		if err != nil {
			return fmt.Errorf("get result: %w", err)
		}
		fmt.Printf("result: %v\n", val)
		fmt.Println("smoke test passed")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("socket", "/tmp/colony.sock", "control-plane unix socket path")
	rootCmd.AddCommand(workersCmd, forksCmd, restartCmd, smokeCmd)
}
