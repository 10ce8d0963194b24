// Package natlab is a control plane for mesh VPN integration tests. It builds
// the topology the client under test sees, compiles per node peer discovery
// documents, installs the host level network state each node needs and hands
// tests scoped fault primitives to force path failover.
package natlab

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Savolro/libtelio/config"
	"github.com/Savolro/libtelio/mesh"
)

// ConfigLogger applies the logging section of the config to l.
func ConfigLogger(l *logrus.Logger, c *config.C) error {
	logLevel, err := logrus.ParseLevel(strings.ToLower(c.GetString("logging.level", "info")))
	if err != nil {
		return fmt.Errorf("%s; possible levels: %s", err, logrus.AllLevels)
	}
	l.SetLevel(logLevel)

	timestampFormat := c.GetString("logging.timestamp_format", "")
	fullTimestamp := (timestampFormat != "")
	if timestampFormat == "" {
		timestampFormat = time.RFC3339
	}

	logFormat := strings.ToLower(c.GetString("logging.format", "text"))
	switch logFormat {
	case "text":
		l.Formatter = &logrus.TextFormatter{
			TimestampFormat: timestampFormat,
			FullTimestamp:   fullTimestamp,
		}
	case "json":
		l.Formatter = &logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
		}
	default:
		return fmt.Errorf("unknown log format `%s`. possible formats: %s", logFormat, []string{"text", "json"})
	}

	return nil
}

// DerpServersFromConfig reads the derp.servers list. The result is passed
// explicitly into every compilation, there is no ambient default: a missing
// section yields an empty list, which compiles to direct-only mesh maps.
func DerpServersFromConfig(c *config.C) []mesh.DerpServer {
	raw, ok := c.Get("derp.servers").([]any)
	if !ok {
		return []mesh.DerpServer{}
	}

	servers := make([]mesh.DerpServer, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		servers = append(servers, mesh.DerpServer(m))
	}
	return servers
}
