package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/dcfnet/dcf/src/config"
	"github.com/dcfnet/dcf/src/plugin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

//NewRelayCmd returns the command running the WAMP relay used by the wamp plugin
func NewRelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "WAMP relay for nodes using the wamp plugin transport",
		Args:  cobra.NoArgs,
		RunE:  runRelay,
	}
	cmd.Flags().String("listen", "localhost:8080", "Listen IP:Port of the relay")
	cmd.Flags().String("realm", plugin.DefaultRealm, "WAMP realm")
	cmd.Flags().String("cert-file", "", "TLS certificate (enables wss)")
	cmd.Flags().String("key-file", "", "TLS key")
	return cmd
}

// runRelay starts the relay and waits for a SIGINT or SIGTERM
func runRelay(cmd *cobra.Command, args []string) error {
	listen, _ := cmd.Flags().GetString("listen")
	realm, _ := cmd.Flags().GetString("realm")
	certFile, _ := cmd.Flags().GetString("cert-file")
	keyFile, _ := cmd.Flags().GetString("key-file")

	logLevel, _ := cmd.Flags().GetString("log")
	conf := config.NewDefaultConfig()
	conf.LogLevel = logLevel
	entry := conf.Logger().WithField("component", "relay")

	relay, err := plugin.NewRelay(listen, realm, certFile, keyFile, entry)
	if err != nil {
		return err
	}

	if err := relay.Listen(); err != nil {
		return err
	}

	entry.WithFields(logrus.Fields{
		"addr":  relay.Addr(),
		"realm": realm,
	}).Info("Relay listening")

	go relay.Run()

	//Prepare sigCh to relay SIGINT and SIGTERM system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	<-sigCh

	relay.Shutdown()

	return nil
}
