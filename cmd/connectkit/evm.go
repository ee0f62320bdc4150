package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/urfave/cli/v2"
)

var (
	toFlag = cli.StringFlag{
		Name:     "to",
		Usage:    "the recipient of the transaction",
		Required: true,
	}
	valueFlag = cli.StringFlag{
		Name:  "value",
		Usage: "the hex encoded amount of wei to transfer",
	}
	dataFlag = cli.StringFlag{
		Name:  "data",
		Usage: "the hex encoded call data",
	}
	skipConfirmFlag = cli.BoolFlag{
		Name:  "skip_confirm",
		Usage: "send without waiting for the confirmation of the operation",
	}
)

var evm = cli.Command{
	Name:  "evm",
	Usage: "operate the smart account bound to the bitcoin wallet",
	Subcommands: []*cli.Command{
		{
			Name:      "rpc",
			Usage:     "send an EIP-1193 request, params are JSON values or plain strings",
			ArgsUsage: "<method> [params...]",
			Action:    evmRPCAction,
		},
		{
			Name:   "smartaccount",
			Usage:  "get the smart account info",
			Action: evmSmartAccountAction,
		},
		{
			Name:   "feequotes",
			Usage:  "get the fee quotes of a transaction",
			Flags:  []cli.Flag{&toFlag, &valueFlag, &dataFlag},
			Action: evmFeeQuotesAction,
		},
		{
			Name:   "sendtx",
			Usage:  "send a transaction through the smart account",
			Flags:  []cli.Flag{&toFlag, &valueFlag, &dataFlag, &skipConfirmFlag},
			Action: evmSendTxAction,
		},
		{
			Name:      "switchchain",
			Usage:     "switch the smart account to another chain",
			ArgsUsage: "<chain_id>",
			Action:    evmSwitchChainAction,
		},
	},
}

func evmRPCAction(ctx *cli.Context) error {
	if ctx.NArg() < 1 {
		return &invalidUsageError{ctx, "rpc"}
	}

	resp, err := doRequest(http.MethodPost, "/v1/evm/rpc", map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  ctx.Args().First(),
		"params":  parseParams(ctx.Args().Tail()),
	})
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}

func evmSmartAccountAction(ctx *cli.Context) error {
	return getAndPrint("/v1/evm/smart-account")
}

func evmFeeQuotesAction(ctx *cli.Context) error {
	resp, err := doRequest(http.MethodPost, "/v1/evm/fee-quotes", map[string]interface{}{
		"tx": []map[string]string{txFromFlags(ctx)},
	})
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}

func evmSendTxAction(ctx *cli.Context) error {
	route := "/v1/evm/user-ops"
	if ctx.Bool(skipConfirmFlag.Name) {
		route += "?forceHideConfirm=true"
	}

	resp, err := doRequest(http.MethodPost, route, map[string]interface{}{
		"tx": []map[string]string{txFromFlags(ctx)},
	})
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}

func evmSwitchChainAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return &invalidUsageError{ctx, "switchchain"}
	}
	chainID, err := strconv.ParseUint(ctx.Args().First(), 0, 64)
	if err != nil {
		return fmt.Errorf("invalid chain id %q", ctx.Args().First())
	}

	resp, err := doRequest(http.MethodPut, "/v1/evm/chain", map[string]uint64{
		"chainId": chainID,
	})
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}

func txFromFlags(ctx *cli.Context) map[string]string {
	tx := map[string]string{"to": ctx.String(toFlag.Name)}
	if value := ctx.String(valueFlag.Name); value != "" {
		tx["value"] = value
	}
	if data := ctx.String(dataFlag.Name); data != "" {
		tx["data"] = data
	}
	return tx
}

// parseParams keeps the args that are valid JSON as they are and turns
// everything else into JSON strings.
func parseParams(args []string) []json.RawMessage {
	params := make([]json.RawMessage, 0, len(args))
	for _, arg := range args {
		if json.Valid([]byte(arg)) {
			params = append(params, json.RawMessage(arg))
			continue
		}
		buf, _ := json.Marshal(arg)
		params = append(params, buf)
	}
	return params
}
