package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	url     string
	text    string
	file    string
	timeout time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Ask a node to mine a block with the provided payload.",
	RunE:  sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
	sendCmd.Flags().StringVarP(&text, "text", "t", "", "Text payload for the block.")
	sendCmd.Flags().StringVarP(&file, "file", "f", "", "File holding a JSON payload for the block.")
	sendCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "How long to wait for the block to be mined.")
}

func sendRun(cmd *cobra.Command, args []string) error {
	var payload json.RawMessage

	switch {
	case text != "" && file != "":
		return errors.New("only one of text or file can be provided")

	case text != "":
		data, err := json.Marshal(text)
		if err != nil {
			return err
		}
		payload = data

	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		if !json.Valid(data) {
			return fmt.Errorf("file %q does not contain valid JSON", file)
		}
		payload = data

	default:
		return errors.New("a text or file payload is required")
	}

	body, err := json.Marshal(struct {
		Payload json.RawMessage `json:"payload"`
	}{
		Payload: payload,
	})
	if err != nil {
		return err
	}

	client := http.Client{Timeout: timeout}
	resp, err := client.Post(fmt.Sprintf("%s/v1/blocks", url), "application/json", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("node returned %d: %s", resp.StatusCode, data)
	}

	log.Infow("send", "status", "block mined", "url", url)
	fmt.Println(string(data))

	return nil
}
