package util

import (
	"strings"

	"github.com/imdario/mergo"
	"github.com/spf13/pflag"

	"github.com/ohsu-comp-bio/glidein/config"
)

func normalize(name string) string {
	from := []string{"-", "_"}
	to := "."
	for _, sep := range from {
		name = strings.Replace(name, sep, to, -1)
	}
	return strings.ToLower(name)
}

// NormalizeFlags allows for flags to be case and separator insensitive.
// Use it by passing it to cobra.Command.SetGlobalNormalizationFunc
func NormalizeFlags(f *pflag.FlagSet, name string) pflag.NormalizedName {
	lookup := map[string]string{"help": "help", normalize(name): name}

	f.VisitAll(func(f *pflag.Flag) {
		lookup[normalize(f.Name)] = f.Name
	})

	return pflag.NormalizedName(lookup[normalize(name)])
}

// MergeConfigFileWithFlags loads the glidein config file, if any, over the
// defaults and then applies the values set by flags. Flag values override
// values in the config file.
func MergeConfigFileWithFlags(file string, flagConf config.Config) (config.Config, error) {
	conf := config.DefaultConfig()
	err := config.ParseFile(file, &conf)
	if err != nil {
		return conf, err
	}

	// file vals <- cli val
	err = mergo.MergeWithOverwrite(&conf, flagConf)
	if err != nil {
		return conf, err
	}
	return conf, nil
}
