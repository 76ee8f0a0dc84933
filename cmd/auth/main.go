// Command auth runs the tollgate token service.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/aussiebroadwan/tollgate/internal/auth/app"
)

func main() {
	version := flag.Bool("version", false, "print the build version and exit")
	check := flag.Bool("check-config", false, "validate the environment configuration and exit")
	flag.Parse()

	if *version {
		fmt.Println(app.BuildVersion)
		return
	}

	cfg := app.LoadConfig()

	if *check {
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
			os.Exit(2)
		}
		fmt.Println("configuration ok")
		return
	}

	application, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "auth: startup failed: %v\n", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "auth: %v\n", err)
		os.Exit(1)
	}
}
