package main

import (
	"fmt"
	"net/http"

	"github.com/urfave/cli/v2"
)

var connectors = cli.Command{
	Name:   "connectors",
	Usage:  "list the available wallet connectors",
	Action: connectorsAction,
}

var connect = cli.Command{
	Name:      "connect",
	Usage:     "connect the wallet with the given connector id",
	ArgsUsage: "<connector_id>",
	Action:    connectAction,
}

var disconnect = cli.Command{
	Name:   "disconnect",
	Usage:  "disconnect the active wallet",
	Action: disconnectAction,
}

var accounts = cli.Command{
	Name:   "accounts",
	Usage:  "get the accounts of the connected wallet and the smart account",
	Action: accountsAction,
}

var accountContract = cli.Command{
	Name:   "accountcontract",
	Usage:  "list the supported account contracts and the selected one",
	Action: listAccountContractsAction,
	Subcommands: []*cli.Command{
		{
			Name:      "select",
			Usage:     "select the account contract backing the smart account",
			ArgsUsage: "<name> <version>",
			Action:    selectAccountContractAction,
		},
	},
}

func connectorsAction(ctx *cli.Context) error {
	return getAndPrint("/v1/connectors")
}

func connectAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return &invalidUsageError{ctx, "connect"}
	}

	resp, err := doRequest(http.MethodPost, "/v1/connect", map[string]string{
		"connectorId": ctx.Args().First(),
	})
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}

func disconnectAction(ctx *cli.Context) error {
	if _, err := doRequest(http.MethodPost, "/v1/disconnect", nil); err != nil {
		return err
	}
	fmt.Println("disconnected")
	return nil
}

func accountsAction(ctx *cli.Context) error {
	return getAndPrint("/v1/accounts")
}

func listAccountContractsAction(ctx *cli.Context) error {
	return getAndPrint("/v1/account-contracts")
}

func selectAccountContractAction(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return &invalidUsageError{ctx, "select"}
	}

	resp, err := doRequest(http.MethodPut, "/v1/account-contract", map[string]string{
		"name":    ctx.Args().Get(0),
		"version": ctx.Args().Get(1),
	})
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}

func getAndPrint(route string) error {
	resp, err := doRequest(http.MethodGet, route, nil)
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}
