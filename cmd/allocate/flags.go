package allocate

import (
	"github.com/spf13/pflag"

	"github.com/ohsu-comp-bio/glidein/compute"
)

var requiredFlags = []string{"node-count", "slots", "maximum-wall-clock"}

func allocationFlags(opts *compute.Options, shutdown *int) *pflag.FlagSet {
	f := pflag.NewFlagSet("", pflag.ContinueOnError)

	f.IntVarP(&opts.NodeCount, "node-count", "n", opts.NodeCount, "Number of glide-ins to submit; these are chunks of a node, size the number of cores/slots")
	f.IntVarP(&opts.Slots, "slots", "s", opts.Slots, "Slots per node or glide-in")
	f.StringVarP(&opts.WallClock, "maximum-wall-clock", "m", opts.WallClock, "Maximum wall clock time; e.g., 3600, 10:00:00, 6-00:00:00, etc")
	f.StringVarP(&opts.NodeSet, "node-set", "N", opts.NodeSet, "Name of the node set")
	f.StringVarP(&opts.Queue, "queue", "q", opts.Queue, "Queue / partition name")
	f.BoolVarP(&opts.Email, "email", "e", opts.Email, "Use the platform Email directive in the submit file. Without it the directive is commented out and no mail is sent")
	f.StringVarP(&opts.OutputLog, "output-log", "O", opts.OutputLog, "Output log filename; this option for PBS, unused with Slurm")
	f.StringVarP(&opts.ErrorLog, "error-log", "E", opts.ErrorLog, "Error log filename; this option for PBS, unused with Slurm")
	f.IntVarP(shutdown, "glidein-shutdown", "g", *shutdown, "Glide-in shutdown timeout in seconds")
	f.BoolVarP(&opts.Verbose, "verbose", "v", opts.Verbose, "Verbose")
	f.StringVarP(&opts.Reservation, "reservation", "r", opts.Reservation, "Target a particular Slurm reservation")
	f.StringVar(&opts.QOS, "qos", opts.QOS, "Specify a Slurm QOS")
	f.BoolVarP(&opts.Pack, "pack", "p", opts.Pack, "Encourage nodes to pack jobs rather than spread")
	f.StringVarP(&opts.DynamicSlots, "dynamic", "d", opts.DynamicSlots, "Configure dynamic slots. A file holding the slot configuration must be attached with '=', as in --dynamic=FILE or -d=FILE")
	f.Lookup("dynamic").NoOptDefVal = compute.DefaultDynamicSlots
	f.BoolVarP(&opts.Auto, "auto", "a", opts.Auto, "Size glide-ins from the idle jobs in the HTCondor queue")

	return f
}
