package commands

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

var _serviceAddr string

func addServiceFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&_serviceAddr, "service", "", "IP:Port of the node's HTTP service (defaults to service_addr)")
}

//NewStatusCmd returns the command printing the stats of a running node
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the stats of a running node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return queryService(cmd, http.MethodGet, "/stats", "")
		},
	}
	addServiceFlag(cmd)
	return cmd
}

//NewPeersCmd returns the command printing the peers of a running node
func NewPeersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peers",
		Short: "Print the peers of a running node and their RTT",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return queryService(cmd, http.MethodGet, "/peers", "")
		},
	}
	addServiceFlag(cmd)
	return cmd
}

//NewHealthCheckCmd returns the command probing one peer from a running node
func NewHealthCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health-check [peer]",
		Short: "Probe a peer and record its RTT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return queryService(cmd, http.MethodGet, "/health", args[0])
		},
	}
	addServiceFlag(cmd)
	return cmd
}

//NewGroupPeersCmd returns the command splitting peers into local and remote
func NewGroupPeersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group-peers",
		Short: "Group peers by RTT threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return queryService(cmd, http.MethodGet, "/groups", "")
		},
	}
	addServiceFlag(cmd)
	return cmd
}

//NewSimulateFailureCmd returns the command marking a peer unreachable
func NewSimulateFailureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate-failure [peer]",
		Short: "Mark a peer unreachable until healed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return queryService(cmd, http.MethodPost, "/fail", args[0])
		},
	}
	addServiceFlag(cmd)
	return cmd
}

//NewHealCmd returns the command reverting simulate-failure
func NewHealCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "heal [peer]",
		Short: "Make a failed peer reachable again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return queryService(cmd, http.MethodPost, "/heal", args[0])
		},
	}
	addServiceFlag(cmd)
	return cmd
}

// serviceURL returns the URL of path on the node's HTTP service. The --service
// flag wins over the configured service_addr.
func serviceURL(path, peer string) (string, error) {
	addr := _serviceAddr
	if addr == "" {
		conf, err := loadConfig()
		if err != nil {
			return "", err
		}
		addr = conf.ServiceAddr
	}

	u := url.URL{Scheme: "http", Host: addr, Path: path}
	if peer != "" {
		u.RawQuery = url.Values{"peer": []string{peer}}.Encode()
	}
	return u.String(), nil
}

func queryService(cmd *cobra.Command, method, path, peer string) error {
	u, err := serviceURL(path, peer)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, body)
	}

	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return err
	}

	if _jsonOutput {
		return output(cmd.OutOrStdout(), v)
	}
	return output(cmd.OutOrStdout(), flatten(v))
}

// flatten turns decoded JSON into the shapes output prints line by line.
func flatten(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		res := make(map[string]string, len(t))
		for k, e := range t {
			switch s := e.(type) {
			case string:
				res[k] = s
			default:
				b, _ := json.Marshal(s)
				res[k] = string(b)
			}
		}
		return res
	case []interface{}:
		res := make(map[string]string, len(t))
		for i, e := range t {
			b, _ := json.Marshal(e)
			res[fmt.Sprintf("%03d", i)] = string(b)
		}
		return res
	default:
		return t
	}
}
