package plugin

import (
	"sync"

	"github.com/dcfnet/dcf/src/common"
	"github.com/dcfnet/dcf/src/config"
	"github.com/sirupsen/logrus"
)

// Manager hands out the plugin transport selected by the current plugin_path.
type Manager struct {
	sync.Mutex

	store     *config.Store
	path      string
	transport Transport
	responder func([]byte) []byte

	logger *logrus.Entry
}

// NewManager creates a Manager reading plugin_path from store.
func NewManager(store *config.Store, logger *logrus.Entry) *Manager {
	return &Manager{
		store:  store,
		logger: logger,
	}
}

// SetResponder sets the function installed on transports implementing
// Responder. It applies to transports loaded afterwards.
func (m *Manager) SetResponder(r func([]byte) []byte) {
	m.Lock()
	defer m.Unlock()
	m.responder = r
	if t, ok := m.transport.(Responder); ok && r != nil {
		t.SetResponder(r)
	}
}

// Transport returns the configured plugin transport, or nil when plugin_path is
// empty. The transport is loaded and set up on first use, and replaced when
// plugin_path changes.
func (m *Manager) Transport() (Transport, error) {
	conf := m.store.Current()

	m.Lock()
	defer m.Unlock()

	if conf.PluginPath == m.path && (m.transport != nil || m.path == "") {
		return m.transport, nil
	}

	m.release()

	if conf.PluginPath == "" {
		return nil, nil
	}

	t, err := Load(conf.PluginPath, conf, m.logger)
	if err != nil {
		return nil, common.NewDCFErr(common.PluginLoad, conf.PluginPath, err)
	}

	if err := t.Setup(conf.Host, conf.Port); err != nil {
		t.Close()
		return nil, common.NewDCFErr(common.PluginLoad, conf.PluginPath, err)
	}

	if r, ok := t.(Responder); ok && m.responder != nil {
		r.SetResponder(m.responder)
	}

	m.path = conf.PluginPath
	m.transport = t

	m.logger.WithField("plugin", m.path).Info("Loaded plugin transport")

	return t, nil
}

// Path returns the plugin path of the loaded transport.
func (m *Manager) Path() string {
	m.Lock()
	defer m.Unlock()
	return m.path
}

// Close releases the loaded transport, if any.
func (m *Manager) Close() error {
	m.Lock()
	defer m.Unlock()
	return m.release()
}

func (m *Manager) release() error {
	var err error
	if m.transport != nil {
		err = m.transport.Close()
		m.logger.WithField("plugin", m.path).Debug("Released plugin transport")
	}
	m.transport = nil
	m.path = ""
	return err
}
