package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bascanada/forklift-ops/pkg/forklift"
	"github.com/bascanada/forklift-ops/pkg/ty"
)

var (
	strict   bool
	pollRole string
	pollSize int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the search backend answers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		backends, err := loadBackends()
		if err != nil {
			return err
		}
		service, err := backends.Service()
		if err != nil {
			return err
		}

		endpoint := backends.Config().SearchEndpoint()
		if !service.Ping(cmd.Context()) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", errorColor.Sprint("unreachable"), endpoint)
			return fmt.Errorf("search backend %s did not answer", endpoint)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okColor.Sprint("ok"), endpoint)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show the failure record with the given id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backends, err := loadBackends()
		if err != nil {
			return err
		}
		service, err := backends.Service()
		if err != nil {
			return err
		}

		id := args[0]
		var record *forklift.LogRecord
		if strict {
			record, err = service.Lookup(cmd.Context(), id)
			if err != nil {
				return err
			}
		} else {
			var ok bool
			if record, ok = service.Get(cmd.Context(), id); !ok {
				return fmt.Errorf("%w: %s", forklift.ErrNotFound, id)
			}
		}
		return printJSON(cmd.OutOrStdout(), record)
	},
}

var pollCmd = &cobra.Command{
	Use:   "poll <service>",
	Short: "List the newest failures of a service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if pollSize < 0 {
			return errors.New("--size must not be negative")
		}

		backends, err := loadBackends()
		if err != nil {
			return err
		}
		service, err := backends.Service()
		if err != nil {
			return err
		}

		var role ty.Opt[string]
		if pollRole != "" {
			role = ty.OptWrap(pollRole)
		}

		records, err := service.Poll(cmd.Context(), args[0], role, pollSize)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), records)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count failures per owner in the retry and replay indices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		backends, err := loadBackends()
		if err != nil {
			return err
		}
		service, err := backends.Service()
		if err != nil {
			return err
		}

		stats, err := service.Stats(cmd.Context())
		if err != nil {
			if stats.Retry == nil && stats.Replay == nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), warnColor.Sprint("partial stats: ")+err.Error())
		}
		return printJSON(cmd.OutOrStdout(), stats)
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <index> <id> <step>",
	Short: "Overwrite the step of a failure record",
	Long: `Overwrite the step of a failure record. The update is fire-and-forget:
a failure is logged, not reported through the exit code.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		backends, err := loadBackends()
		if err != nil {
			return err
		}
		service, err := backends.Service()
		if err != nil {
			return err
		}

		index, id, step := args[0], args[1], args[2]
		service.Update(cmd.Context(), index, id, step)
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s/%s step=%s\n", okColor.Sprint("submitted"), index, id, step)
		return nil
	},
}

func init() {
	getCmd.Flags().BoolVar(&strict, "strict", false, "fail on backend errors instead of reporting the record as absent")
	pollCmd.Flags().StringVarP(&pollRole, "role", "r", "", "rank records owned by this role or queue first")
	pollCmd.Flags().IntVarP(&pollSize, "size", "s", 0, "maximum records to return (default from config)")
}
