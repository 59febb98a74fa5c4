package config

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/dcfnet/dcf/src/common"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// Keys accepted by Store.Update.
const (
	UpdateMode         = "mode"
	UpdateNodeID       = "node_id"
	UpdateHost         = "host"
	UpdatePort         = "port"
	UpdateRTTThreshold = "rtt_threshold"
	UpdatePluginPath   = "plugin_path"
)

// Store holds the configuration of a running node: the snapshot it was loaded
// with, and a current value replaced wholesale by every successful Update.
// Readers always observe either the value before or after an update, never a
// mix of both.
type Store struct {
	mu          sync.RWMutex
	initial     *Config
	current     *Config
	modeHandler func(Mode) error
}

// NewStore creates a Store whose initial and current values are copies of
// conf.
func NewStore(conf *Config) *Store {
	// build the logger before cloning so that every copy shares it
	conf.Logger()
	return &Store{
		initial: conf.Clone(),
		current: conf.Clone(),
	}
}

// Initial returns a copy of the configuration as loaded.
func (s *Store) Initial() *Config {
	return s.initial.Clone()
}

// Current returns a copy of the current configuration.
func (s *Store) Current() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Logger returns the logger shared by all snapshots of this Store.
func (s *Store) Logger() *logrus.Entry {
	return s.initial.Logger()
}

// HandleMode routes updates of the mode key to h instead of applying them
// directly. The node owning the Store registers its mode switch here, and
// records the mode it switched to with RecordMode.
func (s *Store) HandleMode(h func(Mode) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modeHandler = h
}

// RecordMode sets the current mode without going through the mode handler.
func (s *Store) RecordMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.current.Clone()
	next.Mode = m
	s.current = next
}

// Update sets a single whitelisted key. port and rtt_threshold are coerced to
// non-negative integers; mode must name a recognised mode. On any error the
// current configuration is left untouched.
func (s *Store) Update(key string, value interface{}) error {
	key = strings.ToLower(strings.TrimSpace(key))

	if key == UpdateMode {
		s.mu.RLock()
		h := s.modeHandler
		s.mu.RUnlock()

		if h != nil {
			m, err := toMode(value)
			if err != nil {
				return common.NewDCFErr(common.InvalidValue, key, err)
			}
			return h(m)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.Clone()
	if err := next.set(key, value); err != nil {
		return err
	}
	s.current = next

	s.initial.Logger().WithFields(logrus.Fields{
		"key":   key,
		"value": value,
	}).Debug("Config updated")

	return nil
}

func (c *Config) set(key string, value interface{}) error {
	invalid := func(err error) error {
		return common.NewDCFErr(common.InvalidValue, key, err)
	}

	switch key {
	case UpdateMode:
		m, err := toMode(value)
		if err != nil {
			return invalid(err)
		}
		c.Mode = m
	case UpdateNodeID:
		s, err := cast.ToStringE(value)
		if err != nil {
			return invalid(err)
		}
		if s = strings.TrimSpace(s); s == "" {
			return invalid(fmt.Errorf("node_id cannot be empty"))
		}
		c.NodeID = s
	case UpdateHost:
		s, err := cast.ToStringE(value)
		if err != nil {
			return invalid(err)
		}
		c.Host = s
	case UpdatePort:
		p, err := toPort(value)
		if err != nil {
			return invalid(err)
		}
		c.Port = p
	case UpdateRTTThreshold:
		n, err := toNonNegativeInt(value)
		if err != nil {
			return invalid(err)
		}
		c.RTTThreshold = n
	case UpdatePluginPath:
		s, err := cast.ToStringE(value)
		if err != nil {
			return invalid(err)
		}
		c.PluginPath = strings.TrimSpace(s)
	default:
		return common.NewDCFErr(common.InvalidConfigKey, key, nil)
	}
	return nil
}

// toNonNegativeInt coerces strings and numeric types to an int >= 0. Strings
// are parsed as base 10.
func toNonNegativeInt(value interface{}) (int, error) {
	var (
		n   int
		err error
	)

	switch v := value.(type) {
	case nil:
		return 0, fmt.Errorf("missing value")
	case bool:
		return 0, fmt.Errorf("%v is not a number", v)
	case string:
		n, err = strconv.Atoi(strings.TrimSpace(v))
	case []byte:
		n, err = strconv.Atoi(strings.TrimSpace(string(v)))
	default:
		n, err = cast.ToIntE(v)
	}

	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%d is negative", n)
	}
	return n, nil
}

func toMode(value interface{}) (Mode, error) {
	if m, ok := value.(Mode); ok {
		if !m.Valid() {
			return m, fmt.Errorf("invalid mode %d", m)
		}
		return m, nil
	}
	s, err := cast.ToStringE(value)
	if err != nil {
		return 0, err
	}
	return ParseMode(s)
}

func toPort(value interface{}) (int, error) {
	p, err := toNonNegativeInt(value)
	if err != nil {
		return 0, err
	}
	if p > 65535 {
		return 0, fmt.Errorf("%d is not a valid port", p)
	}
	return p, nil
}
