package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/webhook"
)

type webhookPayload struct {
	Data struct {
		Order struct {
			OrderID string `json:"order_id"`
		} `json:"order"`
		Payment struct {
			PaymentStatus string `json:"payment_status"`
		} `json:"payment"`
	} `json:"data"`
	Type string `json:"type"`
}

type signOptions struct {
	secret    string
	file      string
	orderID   string
	status    string
	timestamp int64
	url       string
}

func signWebhookCmd() *cobra.Command {
	o := &signOptions{}
	cmd := &cobra.Command{
		Use:   "sign-webhook",
		Short: "Sign a payment webhook body and optionally deliver it",
		Long: `Compute the signature headers the webhook endpoint expects.

The body is read from --file ("-" for stdin) or built from --order-id and
--status. With --url the signed request is posted there.

Examples:
  reconcilectl sign-webhook --secret s3cr3t --order-id 2b1c... --status SUCCESS
  reconcilectl sign-webhook --secret s3cr3t --file body.json --url http://localhost:8080/api/orders/status/webhook`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSignWebhook(cmd, o)
		},
	}
	cmd.Flags().StringVar(&o.secret, "secret", os.Getenv("WEBHOOK_SECRET"), "merchant client secret")
	cmd.Flags().StringVarP(&o.file, "file", "f", "", "payload file, - for stdin")
	cmd.Flags().StringVar(&o.orderID, "order-id", "", "order id for a generated payload")
	cmd.Flags().StringVar(&o.status, "status", "SUCCESS", "payment status for a generated payload")
	cmd.Flags().Int64Var(&o.timestamp, "timestamp", 0, "timestamp in unix milliseconds (default now)")
	cmd.Flags().StringVar(&o.url, "url", "", "deliver the signed request to this URL")
	return cmd
}

func runSignWebhook(cmd *cobra.Command, o *signOptions) error {
	if o.secret == "" {
		return errors.New("secret not provided and WEBHOOK_SECRET not set")
	}
	body, err := o.body(cmd.InOrStdin())
	if err != nil {
		return err
	}

	ts := o.timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	stamp := strconv.FormatInt(ts, 10)
	sig := webhook.Sign(o.secret, stamp, body)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %s\n", webhook.TimestampHeader, stamp)
	fmt.Fprintf(out, "%s: %s\n", webhook.SignatureHeader, sig)
	fmt.Fprintf(out, "Body: %s\n", body)

	if o.url == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, o.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.TimestampHeader, stamp)
	req.Header.Set(webhook.SignatureHeader, sig)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	fmt.Fprintf(out, "Status: %s\n%s\n", resp.Status, bytes.TrimSpace(respBody))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook rejected with %s", resp.Status)
	}
	return nil
}

func (o *signOptions) body(stdin io.Reader) ([]byte, error) {
	switch o.file {
	case "":
	case "-":
		return io.ReadAll(stdin)
	default:
		return os.ReadFile(o.file)
	}

	if o.orderID == "" {
		return nil, errors.New("either --file or --order-id is required")
	}
	var p webhookPayload
	p.Type = "PAYMENT_SUCCESS_WEBHOOK"
	p.Data.Order.OrderID = o.orderID
	p.Data.Payment.PaymentStatus = o.status
	return json.Marshal(p)
}
