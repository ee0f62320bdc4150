package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/urfave/cli/v2"
)

var confirmations = cli.Command{
	Name:   "confirmations",
	Usage:  "list the operations awaiting confirmation",
	Action: listConfirmationsAction,
	Subcommands: []*cli.Command{
		{
			Name:      "get",
			Usage:     "get a confirmation session",
			ArgsUsage: "<session_id>",
			Action:    getConfirmationAction,
		},
		{
			Name:      "feequote",
			Usage:     "select the fee quote at the given index",
			ArgsUsage: "<session_id> <index>",
			Action:    selectFeeQuoteAction,
		},
		{
			Name:      "notremind",
			Usage:     "skip the confirmation of the next operations, true or false",
			ArgsUsage: "<session_id> <bool>",
			Action:    notRemindAction,
		},
		{
			Name:      "confirm",
			Usage:     "confirm the operation",
			ArgsUsage: "<session_id>",
			Action:    confirmAction,
		},
		{
			Name:      "reject",
			Usage:     "reject the operation",
			ArgsUsage: "<session_id>",
			Action:    rejectAction,
		},
	},
}

func listConfirmationsAction(ctx *cli.Context) error {
	return getAndPrint("/v1/confirmations")
}

func getConfirmationAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return &invalidUsageError{ctx, "get"}
	}
	return getAndPrint(sessionRoute(ctx.Args().First(), ""))
}

func selectFeeQuoteAction(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return &invalidUsageError{ctx, "feequote"}
	}
	index, err := strconv.Atoi(ctx.Args().Get(1))
	if err != nil || index < 0 {
		return fmt.Errorf("invalid fee quote index %q", ctx.Args().Get(1))
	}

	return postAndPrint(
		sessionRoute(ctx.Args().First(), "fee-quote"), map[string]int{"index": index},
	)
}

func notRemindAction(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return &invalidUsageError{ctx, "notremind"}
	}
	notRemind, err := strconv.ParseBool(ctx.Args().Get(1))
	if err != nil {
		return fmt.Errorf("invalid value %q, must be true or false", ctx.Args().Get(1))
	}

	return postAndPrint(
		sessionRoute(ctx.Args().First(), "not-remind"),
		map[string]bool{"notRemind": notRemind},
	)
}

func confirmAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return &invalidUsageError{ctx, "confirm"}
	}
	return postAndPrint(sessionRoute(ctx.Args().First(), "confirm"), nil)
}

func rejectAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return &invalidUsageError{ctx, "reject"}
	}
	if _, err := doRequest(
		http.MethodPost, sessionRoute(ctx.Args().First(), "reject"), nil,
	); err != nil {
		return err
	}
	fmt.Println("operation rejected")
	return nil
}

func sessionRoute(id, action string) string {
	route := "/v1/confirmations/" + url.PathEscape(id)
	if action != "" {
		route += "/" + action
	}
	return route
}

func postAndPrint(route string, body interface{}) error {
	resp, err := doRequest(http.MethodPost, route, body)
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}
