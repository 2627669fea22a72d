package util

import (
	"github.com/spf13/pflag"

	"github.com/ohsu-comp-bio/glidein/config"
)

// ConfigFlags returns a new flag set for the glidein tool configuration.
func ConfigFlags(flagConf *config.Config, configFile *string) *pflag.FlagSet {
	f := pflag.NewFlagSet("", pflag.ContinueOnError)

	f.StringVarP(configFile, "config", "c", *configFile, "Config File")
	f.StringVar(&flagConf.MetricsFile, "metrics-file", flagConf.MetricsFile, "Write allocation metrics to this file in the Prometheus text format")
	f.StringVar(&flagConf.ScheddName, "schedd", flagConf.ScheddName, "HTCondor schedd to query")
	f.StringVar(&flagConf.SeqFile, "seq-file", flagConf.SeqFile, "Node set sequence file")
	f.Var(&flagConf.QueryTimeout, "query-timeout", "Timeout for job queue queries")
	f.Var(&flagConf.SubmitTimeout, "submit-timeout", "Timeout for submission commands")
	f.AddFlagSet(loggerFlags(flagConf))

	return f
}

// OrcaFlags returns the tool configuration flags of run-orca. The config
// file flag has no shorthand there, since -c names the workflow command.
func OrcaFlags(flagConf *config.Config, configFile *string) *pflag.FlagSet {
	f := pflag.NewFlagSet("", pflag.ContinueOnError)

	f.StringVar(configFile, "config", *configFile, "Config File")
	f.StringVar(&flagConf.Commands.Orca, "orca", flagConf.Commands.Orca, "Workflow launcher program")
	f.AddFlagSet(loggerFlags(flagConf))

	return f
}

func loggerFlags(flagConf *config.Config) *pflag.FlagSet {
	f := pflag.NewFlagSet("", pflag.ContinueOnError)

	f.StringVar(&flagConf.Logger.Level, "log-level", flagConf.Logger.Level, "Level of logging")
	f.StringVar(&flagConf.Logger.OutputFile, "log-file", flagConf.Logger.OutputFile, "File path to write logs to")
	f.StringVar(&flagConf.Logger.Formatter, "log-format", flagConf.Logger.Formatter, "Logs formatter. One of ['text', 'json']")

	return f
}
