package codec

import "strings"

// Control command names.
const (
	SetRoleCommand      = "set_role"
	UpdateConfigCommand = "update_config"
)

// ControlCommand is an in-band instruction to change the mode or the
// configuration of the receiving node.
type ControlCommand struct {
	Command string      `codec:"command" json:"command"`
	Role    string      `codec:"role,omitempty" json:"role,omitempty"`
	Key     string      `codec:"key,omitempty" json:"key,omitempty"`
	Value   interface{} `codec:"value,omitempty" json:"value,omitempty"`
}

// NewSetRole returns a set_role command.
func NewSetRole(role string) *ControlCommand {
	return &ControlCommand{Command: SetRoleCommand, Role: role}
}

// NewUpdateConfig returns an update_config command.
func NewUpdateConfig(key string, value interface{}) *ControlCommand {
	return &ControlCommand{Command: UpdateConfigCommand, Key: key, Value: value}
}

// ParseControl tries to decode raw as a control command. It reports false when
// raw is not a command: undecodable bytes, or a record without a command
// field. The command name is not checked against the known commands.
func ParseControl(c Codec, raw []byte) (*ControlCommand, bool) {
	if len(raw) == 0 {
		return nil, false
	}

	cmd := new(ControlCommand)
	if err := c.Unmarshal(raw, cmd); err != nil {
		return nil, false
	}

	cmd.Command = strings.TrimSpace(cmd.Command)
	if cmd.Command == "" {
		return nil, false
	}

	return cmd, true
}
