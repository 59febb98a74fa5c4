package plugin

import (
	"fmt"
	goplugin "plugin"
	"sort"
	"strings"
	"sync"

	"github.com/dcfnet/dcf/src/config"
	"github.com/sirupsen/logrus"
)

// Factory creates a transport from the part of the plugin path following
// "name://", and the node configuration.
type Factory func(arg string, conf *config.Config, logger *logrus.Entry) (Transport, error)

var (
	registryLock sync.RWMutex
	registry     = make(map[string]Factory)
)

func init() {
	Register("websocket", newWebsocketFromPath)
	Register("wamp", newWAMPFromPath)
}

// Register makes a transport available under name. Registering a name twice
// replaces the previous factory.
func Register(name string, factory Factory) {
	registryLock.Lock()
	defer registryLock.Unlock()
	registry[name] = factory
}

// Registered returns the sorted names of the registered transports.
func Registered() []string {
	registryLock.RLock()
	defer registryLock.RUnlock()
	res := make([]string, 0, len(registry))
	for name := range registry {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

// Load creates the transport designated by path. It does not call Setup.
func Load(path string, conf *config.Config, logger *logrus.Entry) (Transport, error) {
	if strings.HasSuffix(path, ".so") {
		return loadSharedObject(path)
	}

	name, arg := path, ""
	if i := strings.Index(path, "://"); i >= 0 {
		name, arg = path[:i], path[i+3:]
	}

	registryLock.RLock()
	factory, ok := registry[name]
	registryLock.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown transport plugin %q", name)
	}

	return factory(arg, conf, logger)
}

func loadSharedObject(path string) (Transport, error) {
	p, err := goplugin.Open(path)
	if err != nil {
		return nil, err
	}

	sym, err := p.Lookup("PluginVersion")
	if err != nil {
		return nil, err
	}
	version, ok := sym.(*string)
	if !ok {
		return nil, fmt.Errorf("%s: PluginVersion is a %T, not a string", path, sym)
	}
	if *version != PluginVersion {
		return nil, fmt.Errorf("%s: plugin version %s, expected %s", path, *version, PluginVersion)
	}

	sym, err = p.Lookup("NewTransport")
	if err != nil {
		return nil, err
	}
	newTransport, ok := sym.(func() Transport)
	if !ok {
		return nil, fmt.Errorf("%s: NewTransport has type %T", path, sym)
	}

	return newTransport(), nil
}
