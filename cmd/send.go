package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bascanada/forklift-ops/pkg/dispatch"
	"github.com/bascanada/forklift-ops/pkg/factory"
	"github.com/bascanada/forklift-ops/pkg/ty"
)

var (
	sendDestination   string
	sendBody          string
	sendBodyFile      string
	sendHeaders       []string
	sendCorrelationID string
)

var sendCmd = &cobra.Command{
	Use:   "send <queue|log>",
	Short: "Publish a message to the queue broker or the partitioned log",
	Long: `Publish a message. "queue" (also stomp, activemq, amq) goes to the STOMP
broker, "log" (also kafka) to the Kafka cluster. Publishing is
fire-and-forget: broker failures are logged only.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"queue", "log"},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := dispatch.ParseKind(args[0])
		if err != nil {
			return err
		}
		msg, err := buildMessage()
		if err != nil {
			return err
		}

		backends, err := loadBackends()
		if err != nil {
			return err
		}
		defer func() {
			if err := backends.Close(); err != nil {
				currentLogger().Error("closing backends failed", "err", err)
			}
		}()

		// only the queue sink needs its broker connection before submitting
		mode := factory.ConnectBackground
		if kind == dispatch.Queue {
			mode = factory.ConnectBlocking
		}
		dispatcher, err := backends.Dispatcher(cmd.Context(), mode)
		if err != nil {
			return err
		}
		if err := dispatcher.Submit(cmd.Context(), kind, msg); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s -> %s\n", okColor.Sprint("submitted"), kind, msg.Destination)
		return nil
	},
}

func buildMessage() (dispatch.Message, error) {
	if sendBody != "" && sendBodyFile != "" {
		return dispatch.Message{}, errors.New("--body and --body-file are mutually exclusive")
	}

	body := sendBody
	if sendBodyFile != "" {
		data, err := readBodyFile(sendBodyFile)
		if err != nil {
			return dispatch.Message{}, err
		}
		body = string(data)
	}

	headers, err := parseHeaders(sendHeaders)
	if err != nil {
		return dispatch.Message{}, err
	}

	return dispatch.Message{
		Destination:   sendDestination,
		Body:          body,
		Headers:       headers,
		CorrelationID: sendCorrelationID,
	}, nil
}

// readBodyFile reads the body from a file, or stdin for "-".
func readBodyFile(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read body file: %w", err)
	}
	return data, nil
}

func parseHeaders(values []string) (ty.MS, error) {
	headers := ty.MS{}
	for _, h := range values {
		k, v, ok := strings.Cut(h, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid header %q, expected key=value", h)
		}
		headers[k] = v
	}
	return headers, nil
}

func init() {
	sendCmd.Flags().StringVarP(&sendDestination, "destination", "d", "", "queue or topic name")
	sendCmd.Flags().StringVarP(&sendBody, "body", "b", "", "message body")
	sendCmd.Flags().StringVar(&sendBodyFile, "body-file", "", "read the body from a file, - for stdin")
	sendCmd.Flags().StringArrayVarP(&sendHeaders, "header", "H", []string{}, "message header key=value, repeatable")
	sendCmd.Flags().StringVar(&sendCorrelationID, "correlation-id", "", "correlation id logged with the message")
	_ = sendCmd.MarkFlagRequired("destination")
}
