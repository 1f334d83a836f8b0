// Package tlmt defines the anonymous usage telemetry contract.
package tlmt

import (
	"context"
	"crypto/sha256"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/host"
)

var (
	once       sync.Once
	identifier machineIdentifier
)

// Event is a single telemetry data point keyed by an anonymous machine id.
type Event struct {
	AnonymousID string
	Name        string
	Properties  map[string]any
}

func NewEvent(name string, props map[string]any) Event {
	mid := machineID()

	ev := Event{
		AnonymousID: mid.id,
		Name:        name,
		Properties:  make(map[string]any, len(mid.meta)+len(props)),
	}

	for k, v := range mid.meta {
		ev.Properties[k] = v
	}

	for k, v := range props {
		ev.Properties[k] = v
	}

	return ev
}

type Telemetry interface {
	Send(ctx context.Context, event Event) error
	Close() error
}

type machineIdentifier struct {
	id   string
	meta map[string]any
}

// machineID derives a stable anonymous identifier from host properties.
// No hostname, username or address ever leaves the machine.
func machineID() machineIdentifier {
	once.Do(func() {
		hash := sha256.New()
		hash.Write([]byte(runtime.GOARCH))
		hash.Write([]byte(runtime.GOOS))
		hash.Write([]byte(runtime.Version()))

		meta := make(map[string]any)

		info, err := host.Info()
		if err == nil && info.HostID != "" {
			hash.Write([]byte(info.HostID))

			meta["os"] = info.OS
			meta["platform"] = info.Platform
			meta["platform_family"] = info.PlatformFamily
			meta["platform_version"] = info.PlatformVersion
		} else {
			hash.Write([]byte(uuid.New().String()))
		}

		identifier.id = fmt.Sprintf("%x", hash.Sum(nil))
		identifier.meta = meta
	})

	return identifier
}
