package commands

import (
	"strconv"

	"github.com/dcfnet/dcf/src/codec"
	"github.com/dcfnet/dcf/src/config"
	"github.com/dcfnet/dcf/src/dcf"
	"github.com/spf13/cobra"
)

//NewSendCmd returns the command that sends one message and prints the reply
func NewSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send [recipient] [data]",
		Short: "Send a message and print the reply",
		Args:  cobra.ExactArgs(2),
		RunE:  sendMessage,
	}
	AddNodeFlags(cmd)
	return cmd
}

//NewReceiveCmd returns the command that waits for messages and prints them
func NewReceiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receive",
		Short: "Wait for messages and print them",
		Args:  cobra.NoArgs,
		RunE:  receiveMessages,
	}
	AddNodeFlags(cmd)
	cmd.Flags().Int("count", 1, "Number of messages to receive")
	return cmd
}

func sendMessage(cmd *cobra.Command, args []string) error {
	conf, err := nodeConfig(cmd)
	if err != nil {
		return err
	}

	// one-shot nodes must not collide with a node running on the same host
	if !cmd.Flags().Changed("port") {
		conf.Port = 0
	}
	conf.NoService = true

	engine, err := startEngine(conf)
	if err != nil {
		return err
	}
	defer engine.Shutdown()

	reply, err := engine.Node.SendMessage([]byte(args[1]), args[0])
	if err != nil {
		return err
	}

	return output(cmd.OutOrStdout(), messageView(reply))
}

func receiveMessages(cmd *cobra.Command, args []string) error {
	count, err := cmd.Flags().GetInt("count")
	if err != nil {
		return err
	}

	conf, err := nodeConfig(cmd)
	if err != nil {
		return err
	}
	conf.NoService = true

	engine, err := startEngine(conf)
	if err != nil {
		return err
	}
	defer engine.Shutdown()

	for i := 0; i < count; i++ {
		msg, err := engine.Node.ReceiveMessage()
		if err != nil {
			return err
		}
		if err := output(cmd.OutOrStdout(), messageView(msg)); err != nil {
			return err
		}
	}

	return nil
}

func startEngine(conf *config.Config) (*dcf.DCF, error) {
	engine := dcf.NewDCF(conf)

	if err := engine.Init(); err != nil {
		return nil, err
	}

	if err := engine.Start(); err != nil {
		engine.Shutdown()
		return nil, err
	}

	return engine, nil
}

func messageView(m *codec.Message) map[string]string {
	return map[string]string{
		"sender":    m.Sender,
		"recipient": m.Recipient,
		"data":      string(m.Data),
		"timestamp": m.Time().String(),
		"sync":      strconv.FormatBool(m.Sync),
		"sequence":  m.Sequence,
	}
}
