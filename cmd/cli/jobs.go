package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/netprobe/internal/jobs"
)

var (
	jobsServer string
	jobsOutput string
	jobsKind   string
	jobsState  string
	jobsPorts  string
)

// jobsCmd represents the jobs command group
var jobsCmd = &cobra.Command{
	Use:     "jobs",
	Aliases: []string{"job"},
	Short:   "Manage scans on a running netprobe service",
	Long: `Submit, list, inspect and cancel scans on a netprobe service started
with 'netprobe serve'. The service address defaults to api.host and api.port
from the config file. The API key is read from NETPROBE_API_KEY or from the
file named by NETPROBE_API_KEY_FILE.`,
	Example: `  netprobe jobs list
  netprobe jobs list --state running --server http://10.0.0.5:8080
  netprobe jobs get 5f0c...
  netprobe jobs scan 192.168.1.10 --ports 22,80,443
  netprobe jobs discover 192.168.1.0/24
  netprobe jobs cancel 5f0c...`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	Args:  cobra.NoArgs,
	RunE:  runJobsList,
}

var jobsGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show a job and its report",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsGet,
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel ID",
	Short: "Cancel a running job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsCancel,
}

var jobsScanCmd = &cobra.Command{
	Use:   "scan HOST",
	Short: "Submit a port scan",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsScan,
}

var jobsDiscoverCmd = &cobra.Command{
	Use:   "discover [network]",
	Short: "Submit a host discovery",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJobsDiscover,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd, jobsGetCmd, jobsCancelCmd, jobsScanCmd, jobsDiscoverCmd)

	jobsCmd.PersistentFlags().StringVar(&jobsServer, "server", "", "Service URL (default from api.host and api.port)")
	jobsCmd.PersistentFlags().StringVarP(&jobsOutput, "output", "o", outputTable, "Output format: table, json, yaml")

	jobsListCmd.Flags().StringVar(&jobsKind, "kind", "", "Only jobs of this kind: port_scan, common_scan, discovery")
	jobsListCmd.Flags().StringVar(&jobsState, "state", "", "Only jobs in this state: running, completed, canceled, failed")

	jobsScanCmd.Flags().StringVarP(&jobsPorts, "ports", "p", "1-1024", "Ports to scan, e.g. 22,80,8000-8100")
}

func jobsClient() (*APIClient, error) {
	if err := validateOutputFormat(jobsOutput); err != nil {
		return nil, err
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newAPIClientFromConfig(jobsServer, cfg)
}

func runJobsList(cmd *cobra.Command, args []string) error {
	client, err := jobsClient()
	if err != nil {
		return err
	}
	list, err := client.ListScans(cmd.Context(), jobsKind, jobsState)
	if err != nil {
		return describeAPIError(err, "list jobs")
	}
	if jobsOutput != outputTable {
		return writeStructured(cmd.OutOrStdout(), jobsOutput, list)
	}
	return writeJobTable(cmd.OutOrStdout(), list)
}

func runJobsGet(cmd *cobra.Command, args []string) error {
	client, err := jobsClient()
	if err != nil {
		return err
	}
	info, err := client.GetScan(cmd.Context(), args[0])
	if err != nil {
		return describeAPIError(err, "get job")
	}
	return writeJob(cmd.OutOrStdout(), info)
}

func runJobsCancel(cmd *cobra.Command, args []string) error {
	client, err := jobsClient()
	if err != nil {
		return err
	}
	info, err := client.CancelScan(cmd.Context(), args[0])
	if err != nil {
		return describeAPIError(err, "cancel job")
	}
	return writeJob(cmd.OutOrStdout(), info)
}

func runJobsScan(cmd *cobra.Command, args []string) error {
	client, err := jobsClient()
	if err != nil {
		return err
	}
	info, err := client.SubmitPortScan(cmd.Context(), args[0], jobsPorts)
	if err != nil {
		return describeAPIError(err, "submit port scan")
	}
	return writeJob(cmd.OutOrStdout(), info)
}

func runJobsDiscover(cmd *cobra.Command, args []string) error {
	client, err := jobsClient()
	if err != nil {
		return err
	}
	network := ""
	if len(args) == 1 {
		network = args[0]
	}
	info, err := client.SubmitDiscovery(cmd.Context(), network)
	if err != nil {
		return describeAPIError(err, "submit discovery")
	}
	return writeJob(cmd.OutOrStdout(), info)
}

// writeJob prints one job, followed by its report once it has finished.
func writeJob(w io.Writer, info jobs.Info) error {
	if jobsOutput != outputTable {
		return writeStructured(w, jobsOutput, info)
	}
	if err := writeJobTable(w, []jobs.Info{info}); err != nil {
		return err
	}
	if info.Error != "" {
		if _, err := fmt.Fprintf(w, "error: %s\n", info.Error); err != nil {
			return err
		}
	}
	if info.Report == nil {
		return nil
	}
	return writeReport(w, outputTable, info.Report, false)
}

func writeJobTable(w io.Writer, list []jobs.Info) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Kind", "Target", "State", "Progress", "Origin", "Created")
	for _, info := range list {
		target := info.Target
		if target == "" {
			target = info.Network
		}
		if err := table.Append([]string{
			info.ID,
			string(info.Kind),
			dash(target),
			string(info.State),
			strconv.Itoa(info.Completed) + "/" + strconv.Itoa(info.Total),
			dash(info.Origin),
			info.CreatedAt.Local().Format(time.DateTime),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}
