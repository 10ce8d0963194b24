package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	natlab "github.com/Savolro/libtelio"
	"github.com/Savolro/libtelio/config"
	"github.com/Savolro/libtelio/mesh"
	"github.com/Savolro/libtelio/util"
)

// A version string that can be set with
//
//	-ldflags "-X main.Build=SOMEVERSION"
//
// at compile-time.
var Build string

func init() {
	if Build == "" {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}

		Build = strings.TrimPrefix(info.Main.Version, "v")
	}
}

func main() {
	configPath := flag.String("config", "", "Path to either a file or directory to load the topology from")
	nodeID := flag.String("node", "", "Compile the mesh map for a single node id instead of all nodes")
	printVersion := flag.Bool("version", false, "Print version")
	printUsage := flag.Bool("help", false, "Print command line usage")

	flag.Parse()

	if *printVersion {
		fmt.Printf("Version: %s\n", Build)
		os.Exit(0)
	}

	if *printUsage {
		flag.Usage()
		os.Exit(0)
	}

	if *configPath == "" {
		fmt.Println("-config flag must be set")
		flag.Usage()
		os.Exit(1)
	}

	// lab hosts carry credentials and addressing overrides in a .env file
	_ = godotenv.Load()

	l := logrus.New()
	l.Out = os.Stderr

	c := config.NewC(l)
	if err := c.Load(*configPath); err != nil {
		fmt.Printf("failed to load config: %s", err)
		os.Exit(1)
	}

	if err := natlab.ConfigLogger(l, c); err != nil {
		util.LogWithContextIfNeeded("Failed to configure the logger", err, l)
		os.Exit(1)
	}

	r, err := natlab.RegistryFromConfig(l, c)
	if err != nil {
		util.LogWithContextIfNeeded("Failed to build the topology", err, l)
		os.Exit(1)
	}

	derpServers := natlab.DerpServersFromConfig(c)

	ids := []string{*nodeID}
	if *nodeID == "" {
		ids = ids[:0]
		for _, n := range r.Nodes() {
			ids = append(ids, n.ID)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, id := range ids {
		m, err := mesh.Compile(r, id, derpServers)
		if err != nil {
			util.LogWithContextIfNeeded("Failed to compile mesh map", err, l)
			os.Exit(1)
		}
		if err := enc.Encode(m); err != nil {
			l.WithError(err).Error("Failed to encode mesh map")
			os.Exit(1)
		}
	}

	os.Exit(0)
}
