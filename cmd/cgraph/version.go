package main

import (
	"flag"
	"fmt"
	"runtime/debug"
)

type versionCommand struct {
	verbose bool
}

func (cmd *versionCommand) Name() string {
	return "version"
}

func (cmd *versionCommand) Help() string {
	return "Show the cgraph version"
}

func (cmd *versionCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.verbose, "v", false, "also show module dependencies")
}

func (cmd *versionCommand) Run() error {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		fmt.Println("cgraph (unknown version)")
		return nil
	}
	fmt.Printf("cgraph %s %s\n", info.Main.Version, info.GoVersion)
	if cmd.verbose {
		for _, dep := range info.Deps {
			fmt.Printf("\t%s %s\n", dep.Path, dep.Version)
		}
	}
	return nil
}
