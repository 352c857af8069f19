package cmd

import (
	"github.com/spf13/pflag"

	"github.com/spacemeshos/go-nodeprops/config"
)

// AddFlags adds node flags to flagSet, bound to the fields of cfg.
// The returned pointer is set to the value of --config after parsing.
func AddFlags(flagSet *pflag.FlagSet, cfg *config.Config) (configPath *string) {
	configPath = flagSet.StringP("config", "c", "", "load configuration from file")

	/** ======================== BaseConfig Flags ========================== **/
	flagSet.StringVarP(&cfg.DataDirParent, "data-folder", "d",
		cfg.DataDirParent, "specify data directory for the node")
	flagSet.StringVar(&cfg.FileLock, "filelock",
		cfg.FileLock, "filesystem lock to prevent running more than one instance")
	flagSet.BoolVar(&cfg.CollectMetrics, "metrics",
		cfg.CollectMetrics, "collect node metrics")
	flagSet.StringVar(&cfg.MetricsAddr, "metrics-addr",
		cfg.MetricsAddr, "address of the metrics server")
	flagSet.StringVar(&cfg.MetricsPush.URL, "metrics-push",
		cfg.MetricsPush.URL, "push metrics to url")
	flagSet.DurationVar(&cfg.MetricsPush.Period, "metrics-push-period",
		cfg.MetricsPush.Period, "push period")
	flagSet.StringVar(&cfg.DisplayName, "name",
		cfg.DisplayName, "display name published by the node")
	flagSet.StringToStringVar(&cfg.Properties, "property",
		cfg.Properties, "property published by the node on start, key=value. can be passed multiple times")

	/** ======================== NodeProps Flags ========================== **/
	flagSet.BoolVar(&cfg.NodeProps.Relay, "relay",
		cfg.NodeProps.Relay, "forward properties of other nodes to peers")
	flagSet.DurationVar(&cfg.NodeProps.AggregationWindow, "aggregation-window",
		cfg.NodeProps.AggregationWindow, "how long changes are collected before listeners are notified")
	flagSet.DurationVar(&cfg.NodeProps.Retention, "retention",
		cfg.NodeProps.Retention, "forget properties of nodes unreachable for longer than this. 0 keeps them forever")

	/** ======================== P2P Flags ========================== **/
	flagSet.StringVar(&cfg.P2P.Listen, "listen",
		cfg.P2P.Listen, "address for listening")
	flagSet.StringSliceVar(&cfg.P2P.Bootnodes, "bootnodes",
		cfg.P2P.Bootnodes, "entrypoints into the network")
	flagSet.IntVar(&cfg.P2P.LowPeers, "low-peers",
		cfg.P2P.LowPeers, "low watermark for the number of connections")
	flagSet.IntVar(&cfg.P2P.HighPeers, "high-peers",
		cfg.P2P.HighPeers, "high watermark for the number of connections")
	flagSet.BoolVar(&cfg.P2P.DisableNatPort, "disable-natport",
		cfg.P2P.DisableNatPort, "disable nat port-mapping")

	/** ======================== Exchange Flags ========================== **/
	flagSet.DurationVar(&cfg.Exchange.SyncCooldown, "sync-cooldown",
		cfg.Exchange.SyncCooldown, "minimal interval between initial exchanges with the same peer")

	/** ======================== Logging Flags ========================== **/
	flagSet.StringVar(&cfg.LOGGING.Encoder, "log-encoder",
		cfg.LOGGING.Encoder, "log as JSON instead of plain text")
	return configPath
}
