package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/urfave/cli/v2"
)

var webhook = cli.Command{
	Name:   "webhook",
	Usage:  "list the webhooks notified of operation events",
	Flags:  []cli.Flag{&webhookTopicFlag},
	Action: listWebhooksAction,
	Subcommands: []*cli.Command{
		{
			Name:  "add",
			Usage: "add a webhook registered for some topic",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "endpoint",
					Usage:    "the endpoint where to notify the webhook",
					Required: true,
				},
				&cli.StringFlag{
					Name:  "secret",
					Usage: "the eventual secret to authenticate requests",
				},
				&webhookTopicFlag,
			},
			Action: addWebhookAction,
		},
		{
			Name:      "remove",
			Usage:     "remove the webhook with the given id",
			ArgsUsage: "<webhook_id>",
			Action:    removeWebhookAction,
		},
	},
}

var webhookTopicFlag = cli.StringFlag{
	Name:  "topic",
	Usage: "the event topic, like sendUserOpResult, or * for all of them",
}

func listWebhooksAction(ctx *cli.Context) error {
	route := "/v1/webhooks"
	if topic := ctx.String(webhookTopicFlag.Name); topic != "" {
		route += "?topic=" + url.QueryEscape(topic)
	}
	return getAndPrint(route)
}

func addWebhookAction(ctx *cli.Context) error {
	topic := ctx.String(webhookTopicFlag.Name)
	if topic == "" {
		return fmt.Errorf("missing webhook topic")
	}

	resp, err := doRequest(http.MethodPost, "/v1/webhooks", map[string]string{
		"topic":    topic,
		"endpoint": ctx.String("endpoint"),
		"secret":   ctx.String("secret"),
	})
	if err != nil {
		return err
	}

	var reply struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp, &reply); err != nil {
		return err
	}
	fmt.Println()
	fmt.Println("hook id:", reply.ID)
	return nil
}

func removeWebhookAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return &invalidUsageError{ctx, "remove"}
	}
	if _, err := doRequest(
		http.MethodDelete, "/v1/webhooks/"+url.PathEscape(ctx.Args().First()), nil,
	); err != nil {
		return err
	}
	fmt.Println("webhook removed")
	return nil
}
