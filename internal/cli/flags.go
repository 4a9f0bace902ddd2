package cli

import "github.com/spf13/pflag"

// The override helpers copy a flag onto a config field only when the user
// set it, so environment values survive unset flags.

func overrideString(fs *pflag.FlagSet, name string, dst *string) {
	if fs.Changed(name) {
		*dst, _ = fs.GetString(name)
	}
}

func overrideInt(fs *pflag.FlagSet, name string, dst *int) {
	if fs.Changed(name) {
		*dst, _ = fs.GetInt(name)
	}
}

func overrideBool(fs *pflag.FlagSet, name string, dst *bool) {
	if fs.Changed(name) {
		*dst, _ = fs.GetBool(name)
	}
}

func overrideStrings(fs *pflag.FlagSet, name string, dst *[]string) {
	if fs.Changed(name) {
		*dst, _ = fs.GetStringSlice(name)
	}
}
